package rewrite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buger/jsonparser"

	"github.com/aretw0/liteforge/pkg/domain"
)

// PlaceholderProjectID marks a synthesized service-account descriptor.
const PlaceholderProjectID = "default-project"

var packageNamePath = []string{"client", "[0]", "client_info", "android_client_info", "package_name"}

// rewriteAppDescriptor sets the machine and display names in app.json.
// Values are patched in place so key order and formatting survive.
func (r *Rewriter) rewriteAppDescriptor(rc *rewriteContext) StepResult {
	rel := r.project.Layout.AppDescriptor
	res := StepResult{Path: rel}

	path, data, err := r.read(rel)
	if err != nil {
		res.Err = err
		return res
	}
	if err := requireObject(data); err != nil {
		res.Err = err
		return res
	}

	updated, err := jsonparser.Set(data, jsonString(rc.id.RegisteredName), "name")
	if err == nil {
		updated, err = jsonparser.Set(updated, jsonString(rc.id.DisplayName), "displayName")
	}
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", domain.ErrMalformedDescriptor, err)
		return res
	}

	if res.Changed, res.Err = writeIfChanged(path, data, updated); res.Err != nil {
		return res
	}
	res.Messages = append(res.Messages,
		fmt.Sprintf("Updated app name to: %s (registered as: %s)", rc.id.DisplayName, rc.id.RegisteredName))
	return res
}

// rewriteServiceAccount stages an operator-supplied descriptor, then binds it to the package name.
// A placeholder is synthesized when no descriptor exists.
func (r *Rewriter) rewriteServiceAccount(rc *rewriteContext) StepResult {
	rel := r.project.Layout.ServiceAccount
	path := r.project.Path(rel)
	res := StepResult{Path: rel}

	if src := rc.req.ServiceAccountPath; src != "" {
		staged, err := stageDescriptor(src, path)
		if err != nil {
			res.Err = err
			return res
		}
		if staged {
			res.Changed = true
			res.Messages = append(res.Messages, fmt.Sprintf("Replaced %s with uploaded file", domain.ServiceAccountFileName))
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		placeholder, err := PlaceholderDescriptor(rc.id.PackageName)
		if err != nil {
			res.Err = err
			return res
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			res.Err = fmt.Errorf("create %s: %w", filepath.Dir(rel), err)
			return res
		}
		if err := os.WriteFile(path, placeholder, 0o644); err != nil {
			res.Err = fmt.Errorf("write %s: %w", rel, err)
			return res
		}
		res.Changed = true
		rc.report.PlaceholderDescriptor = true
		res.Messages = append(res.Messages,
			fmt.Sprintf("Created default %s with package_name: %s", domain.ServiceAccountFileName, rc.id.PackageName))
		res.Warnings = append(res.Warnings, placeholderWarning)
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", rel, err)
		return res
	}
	if err := requireObject(data); err != nil {
		res.Err = err
		return res
	}

	if isPlaceholder(data) {
		rc.report.PlaceholderDescriptor = true
		res.Warnings = append(res.Warnings, placeholderWarning)
	}

	if _, _, _, err := jsonparser.Get(data, packageNamePath[:len(packageNamePath)-1]...); err != nil {
		res.Err = fmt.Errorf("%w: client[0].client_info.android_client_info", domain.ErrPatternNotFound)
		return res
	}

	updated, err := jsonparser.Set(data, jsonString(rc.id.PackageName), packageNamePath...)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", domain.ErrMalformedDescriptor, err)
		return res
	}

	changed, err := writeIfChanged(path, data, updated)
	if err != nil {
		res.Err = err
		return res
	}
	res.Changed = res.Changed || changed
	res.Messages = append(res.Messages,
		fmt.Sprintf("Updated %s package_name to: %s", domain.ServiceAccountFileName, rc.id.PackageName))
	return res
}

const placeholderWarning = "This is a default google-services.json. Push notifications will not work until " +
	"the real descriptor is downloaded from the Firebase console and supplied."

type serviceAccount struct {
	ProjectInfo          projectInfo     `json:"project_info"`
	Client               []accountClient `json:"client"`
	ConfigurationVersion string          `json:"configuration_version"`
}

type projectInfo struct {
	ProjectNumber string `json:"project_number"`
	ProjectID     string `json:"project_id"`
	StorageBucket string `json:"storage_bucket"`
}

type accountClient struct {
	ClientInfo  clientInfo    `json:"client_info"`
	OAuthClient []any         `json:"oauth_client"`
	APIKey      []apiKey      `json:"api_key"`
	Services    clientService `json:"services"`
}

type clientInfo struct {
	MobileSDKAppID    string            `json:"mobilesdk_app_id"`
	AndroidClientInfo androidClientInfo `json:"android_client_info"`
}

type androidClientInfo struct {
	PackageName string `json:"package_name"`
}

type apiKey struct {
	CurrentKey string `json:"current_key"`
}

type clientService struct {
	AppInviteService appInviteService `json:"appinvite_service"`
}

type appInviteService struct {
	OtherPlatformOAuthClient []any `json:"other_platform_oauth_client"`
}

// PlaceholderDescriptor renders a descriptor with documented dummy values bound to pkg.
func PlaceholderDescriptor(pkg string) ([]byte, error) {
	doc := serviceAccount{
		ProjectInfo: projectInfo{
			ProjectNumber: "000000000000",
			ProjectID:     PlaceholderProjectID,
			StorageBucket: PlaceholderProjectID + ".appspot.com",
		},
		Client: []accountClient{{
			ClientInfo: clientInfo{
				MobileSDKAppID:    "1:000000000000:android:0000000000000000000000",
				AndroidClientInfo: androidClientInfo{PackageName: pkg},
			},
			OAuthClient: []any{},
			APIKey:      []apiKey{{CurrentKey: "AIzaSyDummyKeyForBuildPurposesOnly"}},
			Services: clientService{
				AppInviteService: appInviteService{OtherPlatformOAuthClient: []any{}},
			},
		}},
		ConfigurationVersion: "1",
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode placeholder descriptor: %w", err)
	}
	return append(data, '\n'), nil
}

func isPlaceholder(data []byte) bool {
	id, err := jsonparser.GetString(data, "project_info", "project_id")
	return err == nil && id == PlaceholderProjectID
}

// stageDescriptor copies src over dst after checking it is a JSON object.
func stageDescriptor(src, dst string) (bool, error) {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return false, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("read uploaded descriptor: %w", err)
	}
	if err := requireObject(data); err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("create descriptor dir: %w", err)
	}
	existing, _ := os.ReadFile(dst)
	return writeIfChanged(dst, existing, data)
}

func requireObject(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) || len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: not a JSON object", domain.ErrMalformedDescriptor)
	}
	return nil
}

// jsonString encodes s as a JSON string literal without HTML escaping.
func jsonString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// Package manifest holds the runtime manifest of a generated app: splash screen,
// webview link rules, minimum build number and the forced-update prompt.
//
// Snapshots are plain values. Changes are expressed as deep-merge patches applied by Merge,
// and a Store keeps the current snapshot, persists it and notifies subscribers.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrInvalidManifest is returned when a snapshot breaks a field constraint.
var ErrInvalidManifest = errors.New("invalid manifest")

// Link actions understood by the webview router.
const (
	ActionWebview = "webview"
	ActionBrowser = "browser"
)

// Manifest is one immutable snapshot.
type Manifest struct {
	Splash         Splash      `json:"splash" yaml:"splash" mapstructure:"splash"`
	Webview        Webview     `json:"webview" yaml:"webview" mapstructure:"webview"`
	MinBuildNumber int         `json:"minBuildNumber" yaml:"minBuildNumber" mapstructure:"minBuildNumber"`
	ForceUpdate    ForceUpdate `json:"forceUpdate" yaml:"forceUpdate" mapstructure:"forceUpdate"`
}

type Splash struct {
	Title          string `json:"title" yaml:"title" mapstructure:"title"`
	Description    string `json:"description" yaml:"description" mapstructure:"description"`
	Image          string `json:"image" yaml:"image" mapstructure:"image"`
	StatusBarColor string `json:"statusBarColor" yaml:"statusBarColor" mapstructure:"statusBarColor"`
}

type Webview struct {
	StatusBarColor string        `json:"statusBarColor" yaml:"statusBarColor" mapstructure:"statusBarColor"`
	LinkPatterns   []LinkPattern `json:"linkPatterns" yaml:"linkPatterns" mapstructure:"linkPatterns"`
}

// LinkPattern routes URLs matching Pattern either inside the webview or to the system browser.
type LinkPattern struct {
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	Action  string `json:"action" yaml:"action" mapstructure:"action"`
}

type ForceUpdate struct {
	Link        string `json:"link" yaml:"link" mapstructure:"link"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
	Button      string `json:"button" yaml:"button" mapstructure:"button"`
}

// Default returns the snapshot shipped with the template.
func Default() Manifest {
	return Manifest{
		Splash: Splash{
			Title:          "LiteForge",
			Description:    "Your website, packaged as an app",
			Image:          "splash-screen/default.jpg",
			StatusBarColor: "#11494B",
		},
		Webview: Webview{
			StatusBarColor: "#FFD08F",
			LinkPatterns: []LinkPattern{
				{Pattern: `^[\w\W]+$`, Action: ActionBrowser},
			},
		},
		MinBuildNumber: 1,
		ForceUpdate: ForceUpdate{
			Link:        "https://example.com/app",
			Description: "A new version is available. Please update.",
			Button:      "Update",
		},
	}
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{3,8}$`)

// Validate checks the field constraints of a snapshot.
func (m Manifest) Validate() error {
	if !hexColor.MatchString(m.Splash.StatusBarColor) {
		return fmt.Errorf("%w: splash.statusBarColor %q is not a hex color", ErrInvalidManifest, m.Splash.StatusBarColor)
	}
	if !hexColor.MatchString(m.Webview.StatusBarColor) {
		return fmt.Errorf("%w: webview.statusBarColor %q is not a hex color", ErrInvalidManifest, m.Webview.StatusBarColor)
	}
	for i, p := range m.Webview.LinkPatterns {
		if p.Action != ActionWebview && p.Action != ActionBrowser {
			return fmt.Errorf("%w: linkPatterns[%d].action must be %q or %q", ErrInvalidManifest, i, ActionWebview, ActionBrowser)
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("%w: linkPatterns[%d].pattern: %v", ErrInvalidManifest, i, err)
		}
	}
	if m.MinBuildNumber < 0 {
		return fmt.Errorf("%w: minBuildNumber cannot be negative", ErrInvalidManifest)
	}
	if !strings.HasPrefix(m.ForceUpdate.Link, "https://") {
		return fmt.Errorf("%w: forceUpdate.link must start with https://", ErrInvalidManifest)
	}
	return nil
}

// Route returns the action of the first link pattern matching url.
// Unmatched URLs stay in the webview.
func (m Manifest) Route(url string) string {
	for _, p := range m.Webview.LinkPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(url) {
			return p.Action
		}
	}
	return ActionWebview
}

// Clone returns a copy that shares no slices with m.
func (m Manifest) Clone() Manifest {
	m.Webview.LinkPatterns = append([]LinkPattern(nil), m.Webview.LinkPatterns...)
	return m
}

// ToMap converts the snapshot into its generic JSON shape.
func (m Manifest) ToMap() map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// FromMap decodes a generic snapshot into a Manifest.
func FromMap(data map[string]any) (Manifest, error) {
	var m Manifest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &m,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return Manifest{}, err
	}
	if err := decoder.Decode(data); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return m, nil
}

// Merge deep-merges patch over base and returns a new map.
//
// The key set of base governs: keys only present in patch are dropped.
// Nested maps merge recursively, a non-map patch value never replaces a base map,
// lists and scalars present in patch replace the base value, and nil counts as absent.
// Neither argument is modified.
func Merge(base, patch map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for key, baseValue := range base {
		patchValue, present := patch[key]
		if baseMap, ok := baseValue.(map[string]any); ok {
			patchMap, _ := patchValue.(map[string]any)
			result[key] = Merge(baseMap, patchMap)
			continue
		}
		if present && patchValue != nil {
			result[key] = patchValue
			continue
		}
		result[key] = baseValue
	}
	return result
}

// Apply merges patch over m and decodes the result.
func Apply(m Manifest, patch map[string]any) (Manifest, error) {
	merged, err := FromMap(Merge(m.ToMap(), patch))
	if err != nil {
		return Manifest{}, err
	}
	if err := merged.Validate(); err != nil {
		return Manifest{}, err
	}
	return merged, nil
}

// ResolveImage joins a relative splash image path onto baseURL.
// Absolute URLs and an empty baseURL leave the path unchanged.
func ResolveImage(baseURL, image string) string {
	if image == "" || baseURL == "" || strings.Contains(image, "://") {
		return image
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(image, "/")
}

package rewrite

import (
	"fmt"
	"regexp"

	"github.com/aretw0/liteforge/pkg/domain"
)

const servicesPluginLine = `apply plugin: "com.google.gms.google-services"`

var (
	gradleNamespace     = regexp.MustCompile(`namespace\s+["'][^"']+["']`)
	gradleApplicationID = regexp.MustCompile(`applicationId\s+["'][^"']+["']`)

	commentedServicesPlugin = regexp.MustCompile(`(?m)^([ \t]*)//[ \t]*apply plugin:\s*["']com\.google\.gms\.google-services["'][^\n]*$`)
	activeServicesPlugin    = regexp.MustCompile(`(?m)^[ \t]*apply plugin:\s*["']com\.google\.gms\.google-services["']`)
	reactPlugin             = regexp.MustCompile(`(?m)^([ \t]*)apply plugin:\s*["']com\.facebook\.react["'][ \t]*$`)

	commentedFirebaseBOM       = regexp.MustCompile(`(?m)^([ \t]*)//[ \t]*(implementation platform\(['"]com\.google\.firebase:firebase-bom:[^'"]+['"]\))[^\n]*$`)
	commentedFirebaseAnalytics = regexp.MustCompile(`(?m)^([ \t]*)//[ \t]*(implementation\s+['"]com\.google\.firebase:firebase-analytics['"])[^\n]*$`)

	crashUploadPlugin = regexp.MustCompile(`(?m)^([ \t]*)(apply from:[^\n]*sentry\.gradle["']\))[ \t]*$`)
)

// rewriteBuildGradle retargets the build descriptor at the new package.
// Only namespace and applicationId are required; the plugin toggles are no-ops when their lines are absent.
func (r *Rewriter) rewriteBuildGradle(rc *rewriteContext) StepResult {
	rel := r.project.Layout.BuildGradle
	res := StepResult{Path: rel}

	path, data, err := r.read(rel)
	if err != nil {
		res.Err = err
		return res
	}
	pkg := rc.id.PackageName
	text := string(data)

	text, ok := replaceFirst(gradleNamespace, text, fmt.Sprintf("namespace %q", pkg))
	if !ok {
		res.Err = fmt.Errorf("%w: namespace", domain.ErrIdentifierNotFound)
		return res
	}
	text, ok = replaceFirst(gradleApplicationID, text, fmt.Sprintf("applicationId %q", pkg))
	if !ok {
		res.Err = fmt.Errorf("%w: applicationId", domain.ErrIdentifierNotFound)
		return res
	}
	res.Messages = append(res.Messages, fmt.Sprintf("Updated package name to: %s", pkg))

	if r.enableAnalytics {
		var enabled bool
		text, enabled = enableAnalytics(text)
		if enabled {
			res.Messages = append(res.Messages, "Re-enabled Google Services")
		}
	}

	if r.disableCrashUpload {
		if crashUploadPlugin.MatchString(text) {
			text = crashUploadPlugin.ReplaceAllString(text, "$1// $2 // Disabled: Sentry upload causes build failures")
			res.Messages = append(res.Messages, "Disabled crash-report upload plugin")
		}
	}

	res.Changed, res.Err = writeIfChanged(path, data, []byte(text))
	return res
}

// enableAnalytics uncomments the services plugin and the firebase dependencies,
// inserting the plugin after the react plugin when no line for it exists.
func enableAnalytics(text string) (string, bool) {
	before := text

	text = commentedServicesPlugin.ReplaceAllString(text, "${1}"+servicesPluginLine)
	if !activeServicesPlugin.MatchString(text) {
		text, _ = replaceFirstFunc(reactPlugin, text, func(g []string) string {
			return g[0] + "\n" + g[1] + servicesPluginLine
		})
	}
	text = commentedFirebaseBOM.ReplaceAllString(text, "$1$2")
	text = commentedFirebaseAnalytics.ReplaceAllString(text, "$1$2")

	return text, text != before
}

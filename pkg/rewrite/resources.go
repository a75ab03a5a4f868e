package rewrite

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aretw0/liteforge/pkg/domain"
)

var (
	appNameResource = regexp.MustCompile(`<string name="app_name">[^<]+</string>`)
	rootProjectName = regexp.MustCompile(`rootProject\.name\s*=\s*['"][^'"]+['"]`)
	markupEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// rewriteStringResource sets the app_name string resource to the display name.
func (r *Rewriter) rewriteStringResource(rc *rewriteContext) StepResult {
	rel := r.project.Layout.StringsResource
	res := StepResult{Path: rel}

	path, data, err := r.read(rel)
	if err != nil {
		res.Err = err
		return res
	}

	text := rc.id.DisplayName
	if r.escapeMarkup {
		text = markupEscaper.Replace(text)
	}

	updated, ok := replaceFirst(appNameResource, string(data), `<string name="app_name">`+text+`</string>`)
	if !ok {
		res.Err = fmt.Errorf("%w: app_name string resource", domain.ErrPatternNotFound)
		return res
	}

	if res.Changed, res.Err = writeIfChanged(path, data, []byte(updated)); res.Err != nil {
		return res
	}
	res.Messages = append(res.Messages, fmt.Sprintf("Updated Android app name to: %s", rc.id.DisplayName))
	return res
}

// rewriteSettings renames the root project. The settings file is optional.
func (r *Rewriter) rewriteSettings(rc *rewriteContext) StepResult {
	rel := r.project.Layout.SettingsGradle
	res := StepResult{Path: rel}

	path, data, err := r.read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			res.Messages = append(res.Messages, "No settings descriptor, skipped")
			return res
		}
		res.Err = err
		return res
	}

	updated, ok := replaceFirst(rootProjectName, string(data), fmt.Sprintf("rootProject.name = '%s'", rc.id.RegisteredName))
	if !ok {
		res.Err = fmt.Errorf("%w: rootProject.name", domain.ErrPatternNotFound)
		return res
	}

	if res.Changed, res.Err = writeIfChanged(path, data, []byte(updated)); res.Err != nil {
		return res
	}
	res.Messages = append(res.Messages, fmt.Sprintf("Updated rootProject.name to: %s", rc.id.RegisteredName))
	return res
}

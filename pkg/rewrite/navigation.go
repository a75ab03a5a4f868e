package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/liteforge/pkg/domain"
)

var linkRulesSection = regexp.MustCompile(`linkPatterns:\s*\[`)

func linkRule(escapedURL string) string {
	return "\n      {\n        pattern: '^" + escapedURL + "',\n        action: 'webview',\n      },"
}

func legacyPackageURL(pkgs []string) *regexp.Regexp {
	if len(pkgs) == 0 {
		return nil
	}
	quoted := make([]string, len(pkgs))
	for i, p := range pkgs {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`https?://[^'"]*/(` + strings.Join(quoted, "|") + `)(?:[^\w.]|$)`)
}

// rewriteNavigationRules prepends a webview rule for the target URL and
// rebinds store links that embed a legacy package identifier or the package
// the template was migrated from.
func (r *Rewriter) rewriteNavigationRules(rc *rewriteContext) StepResult {
	rel := r.project.Layout.ManifestFile
	res := StepResult{Path: rel}

	path, data, err := r.read(rel)
	if err != nil {
		res.Err = err
		return res
	}
	text := string(data)

	if loc := linkRulesSection.FindStringIndex(text); loc != nil {
		rule := linkRule(rc.id.EscapedURLPattern)
		if !strings.HasPrefix(text[loc[1]:], rule) {
			text = text[:loc[1]] + rule + text[loc[1]:]
			res.Messages = append(res.Messages,
				fmt.Sprintf("Added new pattern to linkPatterns: ^%s (opens in webview)", rc.id.NormalizedURL))
		}
	} else {
		res.Err = fmt.Errorf("%w: linkPatterns", domain.ErrLinkRulesSectionNotFound)
	}

	rebind := append([]string{}, r.legacyPackages...)
	if old := rc.report.OldPackage; old != "" && old != rc.id.PackageName {
		rebind = append(rebind, old)
	}
	if re := legacyPackageURL(rebind); re != nil {
		var replaced int
		text, replaced = replaceGroupAll(re, text, 1, rc.id.PackageName)
		if replaced > 0 {
			res.Messages = append(res.Messages, "Updated package name in manifest URLs")
		}
	}

	changed, err := writeIfChanged(path, data, []byte(text))
	if err != nil {
		res.Err = err
		return res
	}
	res.Changed = changed
	return res
}

// replaceGroupAll substitutes the given submatch of every match of re with a literal.
func replaceGroupAll(re *regexp.Regexp, src string, group int, literal string) (string, int) {
	matches := re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src, 0
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2*group], m[2*group+1]
		b.WriteString(src[last:start])
		b.WriteString(literal)
		last = end
	}
	b.WriteString(src[last:])
	return b.String(), len(matches)
}

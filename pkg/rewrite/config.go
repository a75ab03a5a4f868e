package rewrite

import (
	"fmt"
	"regexp"

	"github.com/aretw0/liteforge/pkg/domain"
)

func configAssignment(key string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(key) + "\\s*:\\s*['\"`][^'\"`]+['\"`]")
}

// rewriteBaseURL replaces the quoted literal assigned to the base URL key.
func (r *Rewriter) rewriteBaseURL(rc *rewriteContext) StepResult {
	rel := r.project.Layout.ConfigFile
	res := StepResult{Path: rel}

	path, data, err := r.read(rel)
	if err != nil {
		res.Err = err
		return res
	}

	updated, ok := replaceFirst(configAssignment(r.configKey), string(data),
		fmt.Sprintf("%s: '%s'", r.configKey, rc.id.NormalizedURL))
	if !ok {
		res.Err = fmt.Errorf("%w: %s", domain.ErrConfigKeyNotFound, r.configKey)
		return res
	}

	if res.Changed, res.Err = writeIfChanged(path, data, []byte(updated)); res.Err != nil {
		return res
	}
	res.Messages = append(res.Messages, fmt.Sprintf("Updated %s to: %s", r.configKey, rc.id.NormalizedURL))
	return res
}

// Package rewrite applies the white-label transforms to a template project.
//
// Every step targets a single artifact and is idempotent: applying the same
// request twice leaves the tree byte-identical to applying it once. Steps run
// in a fixed order and there is no rollback; a hard failure leaves the writes
// of earlier steps in place.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/aretw0/liteforge/internal/logging"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/project"
)

// Step names, in execution order.
const (
	StepBaseURL         = "base-url"
	StepDisplayName     = "display-name"
	StepResourceName    = "resource-name"
	StepBuildGradle     = "build-gradle"
	StepRootProjectName = "root-project-name"
	StepServiceAccount  = "service-account"
	StepPackageTree     = "package-tree"
	StepNavigationRules = "navigation-rules"
)

// DefaultLegacyPackages are package identifiers embedded in store links of the stock template.
var DefaultLegacyPackages = []string{
	"com.digikala.test",
	"com.digikala.fresh",
	"com.digikala.wealth",
	"com.digikala.gold",
}

// StepResult describes the outcome of one rewrite step.
type StepResult struct {
	Step     string
	Path     string
	Messages []string
	Warnings []string
	Changed  bool
	Err      error
}

// Warning reports whether the step finished with something the operator should see.
func (s StepResult) Warning() bool {
	return s.Err != nil || len(s.Warnings) > 0
}

// Report aggregates the results of a rewrite.
type Report struct {
	Identity              domain.Identity
	Steps                 []StepResult
	PlaceholderDescriptor bool
	OldPackage            string
	MovedFiles            []string
}

// Warnings returns the steps that were skipped or flagged.
func (r *Report) Warnings() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Warning() {
			out = append(out, s)
		}
	}
	return out
}

// Rewriter transforms a template project in place.
type Rewriter struct {
	project            project.Project
	logger             *slog.Logger
	observer           func(StepResult)
	configKey          string
	escapeMarkup       bool
	enableAnalytics    bool
	disableCrashUpload bool
	legacyPackages     []string
}

// Option configures the Rewriter.
type Option func(*Rewriter)

// WithLogger configures a logger for step confirmations and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		r.logger = logger
	}
}

// WithObserver registers a callback invoked after every step.
func WithObserver(fn func(StepResult)) Option {
	return func(r *Rewriter) {
		r.observer = fn
	}
}

// WithConfigKey overrides the configuration key holding the base URL.
func WithConfigKey(key string) Option {
	return func(r *Rewriter) {
		r.configKey = key
	}
}

// WithMarkupEscaping controls whether the display name is XML-escaped in the string resource.
// When disabled, names containing '<' or '&' corrupt the resource file.
func WithMarkupEscaping(enabled bool) Option {
	return func(r *Rewriter) {
		r.escapeMarkup = enabled
	}
}

// WithAnalytics controls re-enabling the commented-out analytics plugin and dependencies.
func WithAnalytics(enabled bool) Option {
	return func(r *Rewriter) {
		r.enableAnalytics = enabled
	}
}

// WithCrashUploadDisabled controls commenting out the crash-reporting upload plugin.
func WithCrashUploadDisabled(disabled bool) Option {
	return func(r *Rewriter) {
		r.disableCrashUpload = disabled
	}
}

// WithLegacyPackages sets the identifiers rewritten inside manifest URL literals.
func WithLegacyPackages(pkgs ...string) Option {
	return func(r *Rewriter) {
		r.legacyPackages = pkgs
	}
}

// New creates a Rewriter for the given project.
func New(p project.Project, opts ...Option) *Rewriter {
	r := &Rewriter{
		project:            p,
		logger:             logging.NewNop(),
		configKey:          "BASE_URL",
		escapeMarkup:       true,
		enableAnalytics:    true,
		disableCrashUpload: true,
		legacyPackages:     DefaultLegacyPackages,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type step struct {
	name string
	run  func(rc *rewriteContext) StepResult
}

type rewriteContext struct {
	req    domain.BuildRequest
	id     domain.Identity
	report *Report
}

func (r *Rewriter) steps() []step {
	return []step{
		{StepBaseURL, r.rewriteBaseURL},
		{StepDisplayName, r.rewriteAppDescriptor},
		{StepResourceName, r.rewriteStringResource},
		{StepBuildGradle, r.rewriteBuildGradle},
		{StepRootProjectName, r.rewriteSettings},
		{StepServiceAccount, r.rewriteServiceAccount},
		{StepPackageTree, r.migratePackageTree},
		{StepNavigationRules, r.rewriteNavigationRules},
	}
}

// Rewrite validates the request and applies every step in order.
// Soft failures are recorded as warnings; the first hard failure aborts and is returned as a *domain.StepError.
func (r *Rewriter) Rewrite(ctx context.Context, req domain.BuildRequest) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rc := &rewriteContext{
		req:    req,
		id:     req.Identity(),
		report: &Report{},
	}
	rc.report.Identity = rc.id

	for _, s := range r.steps() {
		if err := ctx.Err(); err != nil {
			return rc.report, err
		}

		res := s.run(rc)
		res.Step = s.name
		rc.report.Steps = append(rc.report.Steps, res)

		if res.Err != nil {
			stepErr := &domain.StepError{Step: s.name, Path: res.Path, Err: res.Err}
			if !stepErr.Soft() {
				r.logger.Error("Rewrite step failed", "step", s.name, "path", res.Path, "err", res.Err)
				r.notify(res)
				return rc.report, stepErr
			}
			r.logger.Warn("Rewrite step skipped", "step", s.name, "path", res.Path, "err", res.Err)
		}
		for _, msg := range res.Messages {
			r.logger.Info(msg, "step", s.name, "path", res.Path, "changed", res.Changed)
		}
		for _, warn := range res.Warnings {
			r.logger.Warn(warn, "step", s.name, "path", res.Path)
		}
		r.notify(res)
	}

	return rc.report, nil
}

func (r *Rewriter) notify(res StepResult) {
	if r.observer != nil {
		r.observer(res)
	}
}

// -- Helpers --

// replaceFirstFunc replaces the first match of re with the output of fn, which receives the submatches.
// Replacement text is literal; '$' in user input is never expanded.
func replaceFirstFunc(re *regexp.Regexp, src string, fn func(groups []string) string) (string, bool) {
	loc := re.FindStringSubmatchIndex(src)
	if loc == nil {
		return src, false
	}
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = src[loc[2*i]:loc[2*i+1]]
		}
	}
	return src[:loc[0]] + fn(groups) + src[loc[1]:], true
}

func replaceFirst(re *regexp.Regexp, src, literal string) (string, bool) {
	return replaceFirstFunc(re, src, func([]string) string { return literal })
}

// writeIfChanged rewrites path only when content differs, preserving its mode.
func writeIfChanged(path string, original, updated []byte) (bool, error) {
	if string(original) == string(updated) {
		return false, nil
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, updated, mode); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func (r *Rewriter) read(rel string) (string, []byte, error) {
	path := r.project.Path(rel)
	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return path, data, nil
}

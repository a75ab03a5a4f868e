package domain

import (
	"errors"
	"fmt"
)

// Validation errors. They are reported before any file is touched.
var (
	ErrInvalidURL            = errors.New("url cannot be empty")
	ErrInvalidAppName        = errors.New("application name cannot be empty")
	ErrInvalidPackageName    = errors.New("invalid package name format (use: com.example.app)")
	ErrInvalidDescriptorPath = errors.New("service account descriptor must be a .json file")
	ErrInvalidUploadName     = errors.New(`file must be named "google-services.json"`)
	ErrInvalidFileType       = errors.New("only JSON files are allowed")
	ErrPayloadTooLarge       = errors.New("uploaded file exceeds size limit")
	ErrMissingRequiredFields = errors.New("missing required fields: url, appName, packageName")
	ErrInputTooLarge         = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8           = errors.New("input contains invalid UTF-8 sequences")
	ErrProjectNotFound       = errors.New("template project not found")
	ErrBuildInProgress       = errors.New("a build is already running for this project")
	ErrArtifactNotFound      = errors.New("artifact not found")
)

// Rewrite errors.
var (
	// ErrConfigKeyNotFound is returned when the base URL assignment is absent from the config source.
	ErrConfigKeyNotFound = errors.New("config key not found")

	// ErrMalformedDescriptor is returned when a JSON descriptor cannot be parsed.
	ErrMalformedDescriptor = errors.New("malformed descriptor")

	// ErrIdentifierNotFound is returned when a required declaration is missing from a build file.
	ErrIdentifierNotFound = errors.New("identifier declaration not found")

	// ErrPatternNotFound marks an optional transform whose target is absent.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrNoSourceFilesFound is returned when the package source tree is empty.
	ErrNoSourceFilesFound = errors.New("no source files found")

	// ErrLinkRulesSectionNotFound is returned when the manifest has no linkPatterns list.
	ErrLinkRulesSectionNotFound = errors.New("link rules section not found")
)

// Toolchain errors.
var (
	ErrBuildFailed  = errors.New("build failed")
	ErrBuildTimeout = errors.New("build timed out")
)

// StepError records which rewrite step failed and on which file.
type StepError struct {
	Step string
	Path string
	Err  error
}

func (e *StepError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Step, e.Path, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Soft reports whether the pipeline may continue after this error.
// Soft errors leave the step skipped and are surfaced as warnings.
func (e *StepError) Soft() bool {
	return IsSoft(e.Err)
}

// IsSoft reports whether err belongs to the soft rewrite taxonomy.
func IsSoft(err error) bool {
	return errors.Is(err, ErrPatternNotFound) ||
		errors.Is(err, ErrNoSourceFilesFound) ||
		errors.Is(err, ErrLinkRulesSectionNotFound)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidURL, ErrInvalidAppName, ErrInvalidPackageName, ErrInvalidDescriptorPath,
		ErrInvalidUploadName, ErrInvalidFileType, ErrPayloadTooLarge, ErrMissingRequiredFields,
		ErrInputTooLarge, ErrInvalidUTF8,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

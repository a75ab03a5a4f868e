package domain

// Tool names registered with the process runner.
const (
	ToolKeytool    = "keytool"
	ToolCacheReset = "cache-reset"
	ToolBuild      = "build"
)

// ServiceAccountFileName is the only upload name accepted for the push-notification descriptor.
const ServiceAccountFileName = "google-services.json"

// ProcessResult captures a buffered subprocess run.
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

package ports

import (
	"context"
	"io"
)

// ToolRunner executes named external tools (keytool, the bundler, the native build).
type ToolRunner interface {
	// Stream runs the tool, copying its output to stdout and stderr as it arrives.
	// It returns the exit code, or -1 when the process could not be started.
	Stream(ctx context.Context, name string, stdout, stderr io.Writer, args ...string) (int, error)
}

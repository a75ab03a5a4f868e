package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type settings struct {
	out    io.Writer
	format string
}

// Option adjusts the logger output.
type Option func(*settings)

// WithOutput redirects log records. The default is Stderr.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		s.out = w
	}
}

// WithFormat selects "text" or "json". Unknown values fall back to text.
func WithFormat(format string) Option {
	return func(s *settings) {
		s.format = strings.ToLower(strings.TrimSpace(format))
	}
}

// New creates a configured application logger.
// It writes to Stderr so build output and JSON-RPC on Stdout stay clean.
// The build id is promoted to "build" and "error" is shortened to "err".
func New(level slog.Level, opts ...Option) *slog.Logger {
	s := settings{out: os.Stderr, format: FormatText}
	for _, opt := range opts {
		opt(&s)
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case "error":
				a.Key = "err"
			case "buildID", "build_id":
				a.Key = "build"
			}
			return a
		},
	}
	if s.format == FormatJSON {
		return slog.New(slog.NewJSONHandler(s.out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(s.out, handlerOpts))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

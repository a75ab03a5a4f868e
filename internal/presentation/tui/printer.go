package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/aretw0/liteforge/pkg/domain"
)

// Label colors per event type.
var labelColors = map[domain.EventType]string{
	domain.EventProgress: "#34d399",
	domain.EventWarning:  "#fbbf24",
	domain.EventError:    "#f87171",
	domain.EventSuccess:  "#60a5fa",
}

var labels = map[domain.EventType]string{
	domain.EventProgress: "[ok]",
	domain.EventWarning:  "[warn]",
	domain.EventError:    "[error]",
	domain.EventSuccess:  "[done]",
}

// NewPrinter returns an event printer that colors labels with the given profile.
// Toolchain stderr is dimmed; stdout passes through untouched.
func NewPrinter(p termenv.Profile) func(w io.Writer, e domain.Event) {
	return func(w io.Writer, e domain.Event) {
		switch e.Type {
		case domain.EventStdout:
			fmt.Fprint(w, e.Data)
		case domain.EventStderr:
			fmt.Fprint(w, p.String(e.Data).Foreground(p.Color("#9ca3af")))
		default:
			label, ok := labels[e.Type]
			if !ok {
				return
			}
			styled := p.String(label).Foreground(p.Color(labelColors[e.Type])).Bold()
			fmt.Fprintf(w, "%s %s\n", styled, e.Message)
		}
	}
}

// DetectPrinter picks the color profile of w.
func DetectPrinter(w io.Writer) func(w io.Writer, e domain.Event) {
	return NewPrinter(termenv.NewOutput(w).EnvColorProfile())
}

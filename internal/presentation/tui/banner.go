package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the LiteForge ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _     _ _       _____                    ", "#34d399"},
		{"| |   (_) |_ ___|  ___|__  _ __ __ _  ___ ", "#2dd4bf"},
		{"| |   | | __/ _ \\ |_ / _ \\| '__/ _` |/ _ \\", "#22d3ee"},
		{"| |___| | ||  __/  _| (_) | | | (_| |  __/", "#38bdf8"},
		{"|_____|_|\\__\\___|_|  \\___/|_|  \\__, |\\___|", "#60a5fa"},
		{"                               |___/      ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

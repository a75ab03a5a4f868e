package liteforge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/liteforge/pkg/domain"
)

// Runner drives one build from a terminal: it prompts for missing inputs,
// prints every event and renders a final summary.
// This allows for easy testing and integration with different frontends (CLI, scripts).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
	Printer  EventPrinter
}

// ContentRenderer is a function that transforms the markdown summary before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// EventPrinter writes one event to the terminal.
type EventPrinter func(w io.Writer, e domain.Event)

// ErrInputClosed is returned when a prompt hits end of input.
var ErrInputClosed = errors.New("input closed before all fields were provided")

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{
		Printer: PlainPrinter,
	}
}

// Prompt asks for every empty field of req, validating each answer as it is given.
// In headless mode nothing is asked and the request is validated as is.
func (r *Runner) Prompt(req domain.BuildRequest) (domain.BuildRequest, error) {
	if r.Headless {
		clean, err := domain.NewBuildRequest(req.URL, req.AppName, req.PackageName)
		if err != nil {
			return req, err
		}
		clean = clean.WithServiceAccount(req.ServiceAccountPath)
		return clean, clean.Validate()
	}
	if r.Input == nil || r.Output == nil {
		return req, fmt.Errorf("input and output must be set (use os.Stdin and os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)

	ask := func(label string, field *string, validate func(string) error) error {
		if strings.TrimSpace(*field) == "" {
			fmt.Fprint(r.Output, label)
			text, err := lines.ReadString('\n')
			if err != nil && (err != io.EOF || text == "") {
				if err == io.EOF {
					return ErrInputClosed
				}
				return fmt.Errorf("input error: %w", err)
			}
			*field = text
		}
		clean, err := domain.SanitizeField(*field)
		if err != nil {
			return err
		}
		*field = clean
		return validate(*field)
	}

	if err := ask("Enter website URL: ", &req.URL, domain.ValidateURL); err != nil {
		return req, err
	}
	if err := ask("Enter application name: ", &req.AppName, func(s string) error {
		if s == "" {
			return domain.ErrInvalidAppName
		}
		return nil
	}); err != nil {
		return req, err
	}
	if err := ask("Enter package name (e.g., com.example.app): ", &req.PackageName, domain.ValidatePackageName); err != nil {
		return req, err
	}
	return req, req.Validate()
}

// Run prompts for missing fields, builds, and prints the outcome.
// It returns an error when validation or the build failed.
func (r *Runner) Run(ctx context.Context, forge *Forge, req domain.BuildRequest) (domain.Event, error) {
	if r.Output == nil {
		return domain.Event{}, fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	printer := r.Printer
	if printer == nil {
		printer = PlainPrinter
	}

	req, err := r.Prompt(req)
	if err != nil {
		return domain.Event{}, err
	}

	events, err := forge.Build(ctx, req)
	if err != nil {
		return domain.Event{}, err
	}
	result := Wait(events, func(e domain.Event) {
		if !e.Terminal() {
			printer(r.Output, e)
		}
	})

	summary := Summary(req, result)
	if r.Renderer != nil {
		if rendered, err := r.Renderer(summary); err == nil {
			summary = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(summary))

	if result.Type == domain.EventError {
		return result, fmt.Errorf("%w: %s", domain.ErrBuildFailed, result.Message)
	}
	return result, nil
}

// PlainPrinter prints events with text labels and no styling.
func PlainPrinter(w io.Writer, e domain.Event) {
	switch e.Type {
	case domain.EventStdout, domain.EventStderr:
		fmt.Fprint(w, e.Data)
	case domain.EventProgress:
		fmt.Fprintf(w, "[ok] %s\n", e.Message)
	case domain.EventWarning:
		fmt.Fprintf(w, "[warn] %s\n", e.Message)
	case domain.EventError:
		fmt.Fprintf(w, "[error] %s\n", e.Message)
	case domain.EventSuccess:
		fmt.Fprintf(w, "[done] %s\n", e.Message)
	}
}

// Summary describes a finished build as markdown.
func Summary(req domain.BuildRequest, result domain.Event) string {
	id := req.Identity()
	var b strings.Builder

	if result.Type == domain.EventError {
		b.WriteString("# Build failed\n\n")
		fmt.Fprintf(&b, "%s\n\n", result.Message)
	} else {
		b.WriteString("# Build completed\n\n")
	}
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| App | %s |\n", id.DisplayName)
	fmt.Fprintf(&b, "| Registered name | %s |\n", id.RegisteredName)
	fmt.Fprintf(&b, "| Package | `%s` |\n", id.PackageName)
	fmt.Fprintf(&b, "| URL | %s |\n", id.NormalizedURL)
	switch {
	case result.APKPath != "":
		fmt.Fprintf(&b, "| APK | `%s` |\n", result.APKPath)
	case result.Type == domain.EventSuccess:
		fmt.Fprintf(&b, "\n%s\n", result.Message)
	}
	return b.String()
}

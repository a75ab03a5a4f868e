package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/aretw0/liteforge/internal/logging"
)

// ErrNotInteractive is returned when prompts are needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal: pass url, appName and packageName as arguments")

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger.
// Debug forces debug level; otherwise level applies, and "off" silences logging.
func NewLogger(debug bool, level slog.Level, off bool, opts ...logging.Option) *slog.Logger {
	switch {
	case debug:
		return logging.New(slog.LevelDebug, opts...)
	case off:
		return logging.NewNop()
	default:
		return logging.New(level, opts...)
	}
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// NeedsPrompt reports whether any positional field is missing.
func NeedsPrompt(fields ...string) bool {
	for _, f := range fields {
		if f == "" {
			return true
		}
	}
	return false
}

// PrintSystemMessage prints a standardized system message.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// ExitMessage describes why a command ended early, or returns "" for a clean exit.
func ExitMessage(err error, sig os.Signal) string {
	switch {
	case err == nil:
		return ""
	case sig == os.Interrupt:
		return "Interrupted."
	case sig != nil:
		return "Terminated."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return ""
	}
}

// Package orchestrator runs the native toolchain against a rewritten template
// project and reports exactly one terminal outcome per build.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/liteforge/internal/logging"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/ports"
	"github.com/aretw0/liteforge/pkg/project"
)

const (
	// DefaultTimeout is the wall-clock limit of the release build.
	DefaultTimeout = 600 * time.Second

	// DefaultCacheResetWindow is how long the bundler runs before it is stopped.
	DefaultCacheResetWindow = 2 * time.Second

	// DefaultOutputLimit bounds the per-stream tail kept in the outcome.
	DefaultOutputLimit = 1 << 20
)

// KeystoreArgs are the keytool parameters of the debug signing key, minus the path.
var KeystoreArgs = []string{
	"-genkeypair", "-v",
	"-storetype", "PKCS12",
	"-alias", "androiddebugkey",
	"-storepass", "android",
	"-keypass", "android",
	"-keyalg", "RSA",
	"-keysize", "2048",
	"-validity", "10000",
	"-dname", "CN=Android Debug,O=Android,C=US",
}

// Orchestrator drives keystore provisioning, cache reset, the build and artifact discovery.
type Orchestrator struct {
	project     project.Project
	tools       ports.ToolRunner
	logger      *slog.Logger
	timeout     time.Duration
	resetWindow time.Duration
	outputLimit int
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger configures a logger for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCacheResetWindow overrides DefaultCacheResetWindow. Zero skips the reset.
func WithCacheResetWindow(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.resetWindow = d
	}
}

// WithOutputLimit overrides DefaultOutputLimit.
func WithOutputLimit(n int) Option {
	return func(o *Orchestrator) {
		o.outputLimit = n
	}
}

// New creates an Orchestrator for p that runs tools through runner.
func New(p project.Project, runner ports.ToolRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		project:     p,
		tools:       runner,
		logger:      logging.NewNop(),
		timeout:     DefaultTimeout,
		resetWindow: DefaultCacheResetWindow,
		outputLimit: DefaultOutputLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Build runs the toolchain, delivering output chunks to emit as they arrive.
// It never retries. emit may be nil.
func (o *Orchestrator) Build(ctx context.Context, emit domain.EmitFunc) domain.BuildOutcome {
	out := newSerialEmitter(emit)
	start := time.Now()

	o.ensureKeystore(ctx, out)
	o.resetCache(ctx, out)

	outcome := o.runBuild(ctx, out)
	outcome.Duration = time.Since(start)
	return outcome
}

// ensureKeystore creates the debug signing key when missing. Failures only warn.
func (o *Orchestrator) ensureKeystore(ctx context.Context, out *serialEmitter) {
	path := o.project.Path(o.project.Layout.Keystore)
	if _, err := os.Stat(path); err == nil {
		return
	}

	out.emit(domain.Event{Type: domain.EventProgress, Message: "Creating debug keystore..."})
	args := append([]string{"-keystore", path}, KeystoreArgs...)
	if _, err := o.tools.Stream(ctx, domain.ToolKeytool, nil, nil, args...); err != nil {
		o.logger.Warn("Could not create debug keystore, build may fail", "path", path, "err", err)
		out.emit(domain.Event{
			Type:    domain.EventWarning,
			Message: "Could not create debug keystore: " + err.Error(),
		})
		return
	}
	out.emit(domain.Event{Type: domain.EventProgress, Message: "Debug keystore created"})
}

// resetCache starts the bundler with a clean cache and stops it after the window.
func (o *Orchestrator) resetCache(ctx context.Context, out *serialEmitter) {
	if o.resetWindow <= 0 {
		return
	}
	out.emit(domain.Event{Type: domain.EventProgress, Message: "Clearing Metro bundler cache..."})

	rctx, cancel := context.WithTimeout(ctx, o.resetWindow)
	defer cancel()
	if _, err := o.tools.Stream(rctx, domain.ToolCacheReset, nil, nil); err != nil && rctx.Err() == nil {
		o.logger.Debug("Cache reset failed", "err", err)
	}
}

func (o *Orchestrator) runBuild(ctx context.Context, out *serialEmitter) domain.BuildOutcome {
	out.emit(domain.Event{Type: domain.EventProgress, Message: "Building Android APK..."})

	bctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	stdout := &chunkWriter{stream: domain.StreamStdout, out: out, tail: newTail(o.outputLimit)}
	stderr := &chunkWriter{stream: domain.StreamStderr, out: out, tail: newTail(o.outputLimit)}

	code, err := o.tools.Stream(bctx, domain.ToolBuild, stdout, stderr)
	outcome := domain.BuildOutcome{
		ExitCode: code,
		Stdout:   stdout.tail.Bytes(),
		Stderr:   stderr.tail.Bytes(),
	}

	switch {
	case ctx.Err() != nil:
		outcome.Err = fmt.Errorf("build cancelled: %w", ctx.Err())
	case errors.Is(bctx.Err(), context.DeadlineExceeded):
		outcome.Err = fmt.Errorf("%w after %s", domain.ErrBuildTimeout, o.timeout)
	case err != nil && code < 0:
		outcome.Err = fmt.Errorf("%w: %v", domain.ErrBuildFailed, err)
	case code != 0:
		outcome.Err = fmt.Errorf("%w with exit code %d", domain.ErrBuildFailed, code)
	}
	if outcome.Err != nil {
		if outcome.ExitCode == 0 {
			outcome.ExitCode = -1
		}
		o.logger.Error("Build failed", "exit_code", outcome.ExitCode, "err", outcome.Err)
		return outcome
	}

	artifacts, err := FindArtifacts(o.project.ArtifactDir())
	if err != nil {
		o.logger.Warn("Artifact discovery failed", "dir", o.project.ArtifactDir(), "err", err)
	}
	outcome.ArtifactPath = SelectArtifact(artifacts)
	return outcome
}

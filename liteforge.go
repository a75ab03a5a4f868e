package liteforge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/liteforge/internal/logging"
	"github.com/aretw0/liteforge/pkg/adapters/process"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/guard"
	"github.com/aretw0/liteforge/pkg/orchestrator"
	"github.com/aretw0/liteforge/pkg/ports"
	"github.com/aretw0/liteforge/pkg/project"
	"github.com/aretw0/liteforge/pkg/rewrite"
)

// DefaultMaxUploadBytes caps an uploaded service-account descriptor.
const DefaultMaxUploadBytes = 10 << 20

// MissingArtifactMessage is reported when a build succeeds but produced no package.
const MissingArtifactMessage = "Build completed but APK not found. Check build output."

// Forge is the high-level entry point of LiteForge.
// It ties a template project to the rewriter, the toolchain and the project lock.
type Forge struct {
	project project.Project
	layout  project.Layout
	logger  *slog.Logger

	tools     ports.ToolRunner
	toolchain map[string]process.ProcessConfig
	guard     *guard.Manager
	locker    ports.DistributedLocker
	lockTTL   time.Duration

	rejectWhenBusy bool
	uploadDir      string
	maxUpload      int64

	rewriteOpts []rewrite.Option
	orchOpts    []orchestrator.Option
}

// Option defines a functional option for configuring the Forge.
type Option func(*Forge)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Forge) {
		f.logger = logger
	}
}

// WithLayout overrides the template project layout.
func WithLayout(layout project.Layout) Option {
	return func(f *Forge) {
		f.layout = layout
	}
}

// WithToolRunner injects the toolchain runner, bypassing the default process runner.
func WithToolRunner(r ports.ToolRunner) Option {
	return func(f *Forge) {
		f.tools = r
	}
}

// WithToolchain overrides tool definitions of the default process runner.
func WithToolchain(tools map[string]process.ProcessConfig) Option {
	return func(f *Forge) {
		f.toolchain = process.MergeTools(f.toolchain, tools)
	}
}

// WithLocker enables distributed locking of the project.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(f *Forge) {
		f.locker = locker
	}
}

// WithLockTTL sets the lease of the distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(f *Forge) {
		f.lockTTL = ttl
	}
}

// WithRejectWhenBusy makes Build and Rewrite fail with domain.ErrBuildInProgress
// instead of waiting when the project is already in use.
func WithRejectWhenBusy(reject bool) Option {
	return func(f *Forge) {
		f.rejectWhenBusy = reject
	}
}

// WithBuildTimeout sets the wall-clock limit of the native build.
func WithBuildTimeout(d time.Duration) Option {
	return func(f *Forge) {
		f.orchOpts = append(f.orchOpts, orchestrator.WithTimeout(d))
	}
}

// WithCacheResetWindow sets how long the bundler cache reset may run.
func WithCacheResetWindow(d time.Duration) Option {
	return func(f *Forge) {
		f.orchOpts = append(f.orchOpts, orchestrator.WithCacheResetWindow(d))
	}
}

// WithRewriteOptions forwards options to the template rewriter.
func WithRewriteOptions(opts ...rewrite.Option) Option {
	return func(f *Forge) {
		f.rewriteOpts = append(f.rewriteOpts, opts...)
	}
}

// WithUploadDir sets where uploaded descriptors are staged before a build.
func WithUploadDir(dir string) Option {
	return func(f *Forge) {
		f.uploadDir = dir
	}
}

// WithMaxUploadBytes caps uploaded descriptors.
func WithMaxUploadBytes(n int64) Option {
	return func(f *Forge) {
		if n > 0 {
			f.maxUpload = n
		}
	}
}

// New opens the template project at root.
func New(root string, opts ...Option) (*Forge, error) {
	f := &Forge{
		layout:    project.DefaultLayout(),
		logger:    logging.NewNop(),
		toolchain: process.DefaultToolchain(),
		lockTTL:   guard.DefaultTTL,
		uploadDir: os.TempDir(),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(f)
	}

	p, err := project.Open(root, f.layout)
	if err != nil {
		return nil, err
	}
	f.project = p

	if f.tools == nil {
		f.tools = process.NewRunner(
			process.WithRegistry(f.toolchain),
			process.WithBaseDir(p.Root),
		)
	}

	guardOpts := []guard.Option{guard.WithLogger(f.logger), guard.WithTTL(f.lockTTL)}
	if f.locker != nil {
		guardOpts = append(guardOpts, guard.WithLocker(f.locker))
	}
	f.guard = guard.NewManager(guardOpts...)

	return f, nil
}

// Project returns the template project being customized.
func (f *Forge) Project() project.Project {
	return f.project
}

// Busy reports whether a build currently holds the project.
func (f *Forge) Busy() bool {
	return f.guard.Busy(f.project.LockKey())
}

func (f *Forge) lock(ctx context.Context) (guard.ReleaseFunc, error) {
	if f.rejectWhenBusy {
		return f.guard.TryAcquire(ctx, f.project.LockKey())
	}
	return f.guard.Acquire(ctx, f.project.LockKey())
}

func (f *Forge) rewriter(extra ...rewrite.Option) *rewrite.Rewriter {
	opts := append([]rewrite.Option{rewrite.WithLogger(f.logger)}, f.rewriteOpts...)
	return rewrite.New(f.project, append(opts, extra...)...)
}

// Rewrite customizes the template without building it.
// Extra options apply to this call only.
func (f *Forge) Rewrite(ctx context.Context, req domain.BuildRequest, extra ...rewrite.Option) (*rewrite.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	release, err := f.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return f.rewriter(extra...).Rewrite(ctx, req)
}

// Build validates req, takes the project lock and runs rewrite plus toolchain in the background.
// Validation and lock failures are returned synchronously, before any file is touched.
// The channel carries progress and output events and closes after exactly one terminal event.
// Cancelling ctx kills the toolchain.
func (f *Forge) Build(ctx context.Context, req domain.BuildRequest) (<-chan domain.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	release, err := f.lock(ctx)
	if err != nil {
		return nil, err
	}

	buildID := uuid.NewString()
	logger := f.logger.With("build_id", buildID, "package", req.PackageName)
	events := make(chan domain.Event, 64)

	send := func(e domain.Event) {
		e.BuildID = buildID
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}
	finish := func(e domain.Event) {
		e.BuildID = buildID
		select {
		case events <- e:
		case <-ctx.Done():
			select {
			case events <- e:
			default:
			}
		}
	}

	go func() {
		defer close(events)
		defer release()

		logger.Info("Build started", "url", req.URL, "app_name", req.AppName)
		rw := f.rewriter(
			rewrite.WithLogger(logger),
			rewrite.WithObserver(func(s rewrite.StepResult) {
				for _, e := range StepEvents(s) {
					send(e)
				}
			}),
		)
		if _, err := rw.Rewrite(ctx, req); err != nil {
			logger.Error("Rewrite failed", "err", err)
			finish(domain.Event{Type: domain.EventError, Message: err.Error()})
			return
		}

		orch := orchestrator.New(f.project, f.tools, append([]orchestrator.Option{orchestrator.WithLogger(logger)}, f.orchOpts...)...)
		outcome := orch.Build(ctx, send)
		logger.Info("Build finished", "exit_code", outcome.ExitCode, "duration", outcome.Duration, "artifact", outcome.ArtifactPath)
		finish(TerminalEvent(outcome))
	}()

	return events, nil
}

// StepEvents renders a rewrite step as relay events.
func StepEvents(s rewrite.StepResult) []domain.Event {
	var out []domain.Event
	for _, msg := range s.Messages {
		out = append(out, domain.Event{Type: domain.EventProgress, Message: msg})
	}
	for _, w := range s.Warnings {
		out = append(out, domain.Event{Type: domain.EventWarning, Message: w})
	}
	if s.Err != nil && domain.IsSoft(s.Err) {
		out = append(out, domain.Event{Type: domain.EventWarning, Message: fmt.Sprintf("%s skipped: %v", s.Step, s.Err)})
	}
	return out
}

// TerminalEvent converts a build outcome into the single closing event.
// On success APKPath is the artifact's filesystem path.
func TerminalEvent(o domain.BuildOutcome) domain.Event {
	if !o.Success() {
		msg := fmt.Sprintf("Build failed with exit code %d", o.ExitCode)
		if o.Err != nil && (o.ExitCode < 0 || !errors.Is(o.Err, domain.ErrBuildFailed)) {
			msg = o.Err.Error()
		}
		return domain.Event{Type: domain.EventError, Message: msg}
	}
	if o.ArtifactPath == "" {
		return domain.Event{Type: domain.EventSuccess, Message: MissingArtifactMessage}
	}
	return domain.Event{
		Type:    domain.EventSuccess,
		APKPath: o.ArtifactPath,
		APKName: filepath.Base(o.ArtifactPath),
	}
}

// Wait drains events, forwarding each to emit, and returns the terminal event.
func Wait(events <-chan domain.Event, emit domain.EmitFunc) domain.Event {
	var last domain.Event
	for e := range events {
		if emit != nil {
			emit(e)
		}
		if e.Terminal() {
			last = e
		}
	}
	if !last.Terminal() {
		last = domain.Event{Type: domain.EventError, Message: "build stream ended without a result"}
	}
	return last
}

// StageDescriptor copies an uploaded service-account descriptor into the upload directory.
// The descriptor must be a JSON object no larger than the upload limit.
// The caller removes the returned file once the build finished.
func (f *Forge) StageDescriptor(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxUpload+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > f.maxUpload {
		return "", domain.ErrPayloadTooLarge
	}
	var probe map[string]any
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidFileType, err)
	}

	if err := os.MkdirAll(f.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(f.uploadDir, "google-services-*.json")
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return tmp.Name(), nil
}

// MaxUploadBytes is the configured upload limit.
func (f *Forge) MaxUploadBytes() int64 {
	return f.maxUpload
}

// Artifacts lists the packages currently in the output directory.
func (f *Forge) Artifacts() ([]string, error) {
	return orchestrator.FindArtifacts(f.project.ArtifactDir())
}

// FindArtifact resolves a download name to an artifact path.
func (f *Forge) FindArtifact(name string) (string, error) {
	return orchestrator.LookupArtifact(f.project.ArtifactDir(), name)
}

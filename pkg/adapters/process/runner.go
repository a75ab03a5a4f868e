// Package process runs the external toolchain (keytool, Metro, Gradle) as subprocesses.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"time"

	"github.com/aretw0/liteforge/pkg/domain"
)

// ErrToolNotRegistered is returned when a tool name is missing from the registry.
var ErrToolNotRegistered = errors.New("process tool not registered")

// DefaultWaitDelay bounds how long Wait blocks on inherited pipes after the process is killed.
const DefaultWaitDelay = 5 * time.Second

// Runner implements ports.ToolRunner for local processes.
// It follows a Strict Registry pattern (Allow-Listing): only registered tools can run.
type Runner struct {
	registry  map[string]RegisteredProcess
	baseDir   string
	waitDelay time.Duration
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string // Leading args; call-site args are appended
	Env     map[string]string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			r.registry[name] = RegisteredProcess{
				Command: tool.Command,
				Args:    tool.Args,
				Env:     tool.Environment,
			}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry:  make(map[string]RegisteredProcess),
		waitDelay: DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Lookup returns the registered definition of name.
func (r *Runner) Lookup(name string) (RegisteredProcess, bool) {
	proc, ok := r.registry[name]
	return proc, ok
}

// Tools lists registered tool names in order.
func (r *Runner) Tools() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) command(ctx context.Context, name string, args []string) (*exec.Cmd, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotRegistered, name)
	}

	full := append(append([]string{}, proc.Args...), args...)
	cmd := exec.CommandContext(ctx, proc.Command, full...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = r.waitDelay
	configureProcessGroup(cmd)

	env := cmd.Environ()
	keys := make([]string, 0, len(proc.Env))
	for k := range proc.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+proc.Env[k])
	}
	cmd.Env = env
	return cmd, nil
}

// Stream runs the tool, forwarding output to stdout and stderr as it arrives.
// A nil writer discards that stream.
func (r *Runner) Stream(ctx context.Context, name string, stdout, stderr io.Writer, args ...string) (int, error) {
	cmd, err := r.command(ctx, name, args)
	if err != nil {
		return -1, err
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", name, err)
	}
	return exitStatus(name, cmd.Wait())
}

// Run executes the tool to completion and captures its output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (domain.ProcessResult, error) {
	var stdout, stderr bytes.Buffer
	code, err := r.Stream(ctx, name, &stdout, &stderr, args...)
	return domain.ProcessResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, err
}

func exitStatus(name string, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), fmt.Errorf("%s exited with code %d: %w", name, exitErr.ExitCode(), err)
	}
	return -1, fmt.Errorf("%s: %w", name, err)
}

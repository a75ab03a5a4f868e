package orchestrator_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/liteforge/internal/testutils"
	"github.com/aretw0/liteforge/pkg/adapters/process"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/orchestrator"
	"github.com/aretw0/liteforge/pkg/project"
)

const releaseDir = "android/app/build/outputs/apk/release"

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) emit(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) output(t domain.EventType) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, e := range r.events {
		if e.Type == t {
			b.WriteString(e.Data)
		}
	}
	return b.String()
}

func (r *recorder) has(t domain.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

// fakeToolchain registers shell scripts in place of keytool, Metro and Gradle.
func fakeToolchain(t *testing.T, p project.Project, keytool, reset, build string) *process.Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	runner := process.NewRunner(process.WithBaseDir(p.Root), process.WithWaitDelay(time.Second))
	runner.Register(domain.ToolKeytool, "sh", "-c", keytool, "keytool")
	runner.Register(domain.ToolCacheReset, "sh", "-c", reset, "metro")
	runner.Register(domain.ToolBuild, "sh", "-c", build, "gradle")
	return runner
}

const (
	touchKeystore = `touch "$2"`
	noop          = `true`
)

func TestBuild_SelectsUniversalArtifact(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	build := `echo compiling; echo deprecated >&2
mkdir -p ` + releaseDir + `
touch ` + releaseDir + `/app-arm64-v8a-release.apk ` + releaseDir + `/app-universal-release.apk ` + releaseDir + `/app-release-unaligned.apk`
	runner := fakeToolchain(t, p, touchKeystore, noop, build)
	rec := &recorder{}

	outcome := orchestrator.New(p, runner).Build(context.Background(), rec.emit)

	require.NoError(t, outcome.Err)
	assert.True(t, outcome.Success())
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "app-universal-release.apk", filepath.Base(outcome.ArtifactPath))
	assert.Equal(t, "compiling\n", rec.output(domain.EventStdout))
	assert.Equal(t, "deprecated\n", rec.output(domain.EventStderr))
	assert.Equal(t, "compiling\n", string(outcome.Stdout))
	assert.FileExists(t, p.Path(p.Layout.Keystore), "Keystore is provisioned before the build")
}

func TestBuild_SuccessWithoutArtifact(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	runner := fakeToolchain(t, p, touchKeystore, noop, `echo done`)

	outcome := orchestrator.New(p, runner).Build(context.Background(), nil)

	assert.True(t, outcome.Success())
	assert.Empty(t, outcome.ArtifactPath)
}

func TestBuild_NonZeroExit(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	runner := fakeToolchain(t, p, touchKeystore, noop, `echo "FAILURE: Build failed" >&2; exit 2`)
	rec := &recorder{}

	outcome := orchestrator.New(p, runner).Build(context.Background(), rec.emit)

	assert.False(t, outcome.Success())
	assert.ErrorIs(t, outcome.Err, domain.ErrBuildFailed)
	assert.Equal(t, 2, outcome.ExitCode)
	assert.Contains(t, string(outcome.Stderr), "FAILURE")
	assert.Empty(t, outcome.ArtifactPath)
}

func TestBuild_SpawnFailure(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	runner := fakeToolchain(t, p, touchKeystore, noop, noop)
	runner.Register(domain.ToolBuild, "liteforge-missing-gradle")

	outcome := orchestrator.New(p, runner).Build(context.Background(), nil)

	assert.ErrorIs(t, outcome.Err, domain.ErrBuildFailed)
	assert.Equal(t, -1, outcome.ExitCode)
}

func TestBuild_Timeout(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	runner := fakeToolchain(t, p, touchKeystore, noop, `echo started; sleep 30`)

	start := time.Now()
	outcome := orchestrator.New(p, runner, orchestrator.WithTimeout(300*time.Millisecond)).Build(context.Background(), nil)

	assert.ErrorIs(t, outcome.Err, domain.ErrBuildTimeout)
	assert.False(t, outcome.Success())
	assert.NotEqual(t, 0, outcome.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, "started\n", string(outcome.Stdout))
}

func TestBuild_CallerCancellation(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	runner := fakeToolchain(t, p, touchKeystore, noop, `echo started; sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	emit := func(e domain.Event) {
		rec.emit(e)
		if e.Type == domain.EventStdout {
			cancel()
		}
	}

	outcome := orchestrator.New(p, runner).Build(ctx, emit)

	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.NotErrorIs(t, outcome.Err, domain.ErrBuildTimeout)
}

func TestBuild_BestEffortSteps(t *testing.T) {
	t.Run("Keystore failure only warns", func(t *testing.T) {
		p := testutils.SetupTemplateProject(t)
		runner := fakeToolchain(t, p, `exit 1`, noop, `echo built`)
		rec := &recorder{}

		outcome := orchestrator.New(p, runner).Build(context.Background(), rec.emit)

		assert.True(t, outcome.Success())
		assert.True(t, rec.has(domain.EventWarning))
	})

	t.Run("Existing keystore is reused", func(t *testing.T) {
		p := testutils.SetupTemplateProject(t)
		require.NoError(t, os.WriteFile(p.Path(p.Layout.Keystore), []byte("key"), 0o644))
		runner := fakeToolchain(t, p, `touch keytool-ran`, noop, noop)

		outcome := orchestrator.New(p, runner).Build(context.Background(), nil)

		assert.True(t, outcome.Success())
		assert.NoFileExists(t, p.Path("keytool-ran"))
	})

	t.Run("Cache reset is stopped after its window", func(t *testing.T) {
		p := testutils.SetupTemplateProject(t)
		runner := fakeToolchain(t, p, touchKeystore, `sleep 30`, `echo built`)

		start := time.Now()
		outcome := orchestrator.New(p, runner, orchestrator.WithCacheResetWindow(100*time.Millisecond)).
			Build(context.Background(), nil)

		assert.True(t, outcome.Success())
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("Cache reset failure is swallowed", func(t *testing.T) {
		p := testutils.SetupTemplateProject(t)
		runner := fakeToolchain(t, p, touchKeystore, `exit 7`, `echo built`)

		outcome := orchestrator.New(p, runner).Build(context.Background(), nil)
		assert.True(t, outcome.Success())
	})
}

func TestBuild_OutputLimit(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	runner := fakeToolchain(t, p, touchKeystore, noop, `printf 'aaaaaaaaaa'; printf 'bbbbb'`)
	rec := &recorder{}

	outcome := orchestrator.New(p, runner, orchestrator.WithOutputLimit(5)).Build(context.Background(), rec.emit)

	require.True(t, outcome.Success())
	assert.Equal(t, "bbbbb", string(outcome.Stdout))
	assert.Equal(t, "aaaaaaaaaabbbbb", rec.output(domain.EventStdout), "Relayed output is never truncated")
}

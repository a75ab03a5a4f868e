package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/liteforge/internal/config"
	"github.com/aretw0/liteforge/internal/logging"
	"github.com/aretw0/liteforge/internal/testutils"
	"github.com/aretw0/liteforge/pkg/manifest"
)

func TestCreateForge(t *testing.T) {
	p := testutils.SetupTemplateProject(t)
	cfg := config.Defaults()
	cfg.Project = p.Root
	cfg.UploadDir = t.TempDir()

	forge, closer, err := CreateForge(context.Background(), &cfg, logging.NewNop(), ForgeOptions{RejectWhenBusy: true})
	require.NoError(t, err)
	defer closer()

	assert.Equal(t, p.Root, forge.Project().Root)
	assert.False(t, forge.Busy())
}

func TestCreateForge_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	p := testutils.SetupTemplateProject(t)
	cfg := config.Defaults()
	cfg.Project = p.Root
	cfg.RedisAddr = mr.Addr()

	_, closer, err := CreateForge(context.Background(), &cfg, logging.NewNop(), ForgeOptions{})
	require.NoError(t, err)
	assert.NoError(t, closer())
}

func TestCreateForge_Errors(t *testing.T) {
	t.Run("Missing project", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Project = filepath.Join(t.TempDir(), "missing")
		_, _, err := CreateForge(context.Background(), &cfg, logging.NewNop(), ForgeOptions{})
		assert.Error(t, err)
	})

	t.Run("Bad toolchain line", func(t *testing.T) {
		p := testutils.SetupTemplateProject(t)
		cfg := config.Defaults()
		cfg.Project = p.Root
		cfg.ToolsFile = filepath.Join(t.TempDir(), "tools.yaml")
		require.NoError(t, os.WriteFile(cfg.ToolsFile, []byte("tools: [\n"), 0o644))
		_, _, err := CreateForge(context.Background(), &cfg, logging.NewNop(), ForgeOptions{})
		assert.Error(t, err)
	})
}

func TestCreateManifestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"minBuildNumber": 9}`), 0o644))

	cfg := config.Defaults()
	cfg.ManifestFile = path
	store := CreateManifestStore(context.Background(), &cfg, logging.NewNop())

	<-store.Ready()
	assert.Equal(t, 9, store.Get().MinBuildNumber)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	broken := CreateManifestStore(context.Background(), &cfg, logging.NewNop())
	assert.Equal(t, manifest.Default(), broken.Get())
}

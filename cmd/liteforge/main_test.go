package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/liteforge/pkg/manifest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "liteforge version")
}

func TestManifestCommands(t *testing.T) {
	t.Run("Set requires a manifest file", func(t *testing.T) {
		t.Setenv("LITEFORGE_MANIFEST_FILE", "")
		_, err := execute(t, "manifest", "set", `{"minBuildNumber": 3}`)
		assert.ErrorIs(t, err, errNoManifestFile)
	})

	t.Run("Set then show", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		t.Setenv("LITEFORGE_MANIFEST_FILE", path)

		out, err := execute(t, "manifest", "set", "minBuildNumber: 7\nsplash:\n  title: Shop\n")
		require.NoError(t, err)
		assert.Contains(t, out, "minBuildNumber 7")

		out, err = execute(t, "manifest", "show")
		require.NoError(t, err)

		var got manifest.Manifest
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, 7, got.MinBuildNumber)
		assert.Equal(t, "Shop", got.Splash.Title)
		assert.Equal(t, manifest.Default().Webview, got.Webview)
	})

	t.Run("Invalid patch is rejected", func(t *testing.T) {
		t.Setenv("LITEFORGE_MANIFEST_FILE", filepath.Join(t.TempDir(), "manifest.json"))
		_, err := execute(t, "manifest", "set", `{"minBuildNumber": -1}`)
		assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
	})
}

func TestManifestTools(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LITEFORGE_MANIFEST_FILE", "")

	t.Run("Route", func(t *testing.T) {
		t.Cleanup(func() { _ = manifestShowCmd.Flags().Set("route", "") })
		out, err := execute(t, "manifest", "show", "--route", "https://other.org/page")
		require.NoError(t, err)
		assert.Equal(t, "https://other.org/page -> browser\n", out)
	})

	t.Run("Export then validate", func(t *testing.T) {
		path := filepath.Join(dir, "manifest.yaml")
		out, err := execute(t, "manifest", "export", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Manifest written")

		loaded, err := manifest.Load(path, manifest.Default())
		require.NoError(t, err)
		assert.Equal(t, manifest.Default(), loaded)

		out, err = execute(t, "manifest", "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Manifest OK")
	})

	t.Run("Validate rejects bad overrides", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"minBuildNumber": -4}`), 0o644))
		_, err := execute(t, "manifest", "validate", path)
		assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
	})
}

func TestParsePatch(t *testing.T) {
	patch, err := parsePatch([]byte(`{"splash": {"title": "Shop"}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"splash": map[string]any{"title": "Shop"}}, patch)

	_, err = parsePatch([]byte("  "))
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)

	_, err = parsePatch([]byte("- a\n- b"))
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
}

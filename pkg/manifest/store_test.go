package manifest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/liteforge/pkg/manifest"
)

func TestStore_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := manifest.NewStore(manifest.Default(), manifest.WithFile(path))

	_, err := store.Update(map[string]any{"minBuildNumber": 2})
	assert.ErrorIs(t, err, manifest.ErrNotReady)

	var seen []manifest.Manifest
	unsubscribe := store.Subscribe(func(m manifest.Manifest) { seen = append(seen, m) })

	require.NoError(t, store.Init(context.Background()))
	select {
	case <-store.Ready():
	default:
		t.Fatal("store should be ready after Init")
	}
	require.Len(t, seen, 1)
	assert.Equal(t, manifest.Default(), seen[0])

	updated, err := store.Update(map[string]any{"minBuildNumber": 2, "splash": map[string]any{"title": "Shop"}})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MinBuildNumber)
	assert.Equal(t, "Shop", store.Get().Splash.Title)
	require.Len(t, seen, 2)
	assert.Equal(t, updated, seen[1])

	unsubscribe()
	unsubscribe()
	_, err = store.Update(map[string]any{"minBuildNumber": 3})
	require.NoError(t, err)
	assert.Len(t, seen, 2)

	reloaded := manifest.NewStore(manifest.Default(), manifest.WithFile(path))
	require.NoError(t, reloaded.Init(context.Background()))
	assert.Equal(t, 3, reloaded.Get().MinBuildNumber)
	assert.Equal(t, "Shop", reloaded.Get().Splash.Title)
}

func TestStore_InvalidUpdateKeepsSnapshot(t *testing.T) {
	store := manifest.NewStore(manifest.Default())
	require.NoError(t, store.Init(context.Background()))

	_, err := store.Update(map[string]any{"webview": map[string]any{"statusBarColor": "blue"}})
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
	assert.Equal(t, manifest.Default(), store.Get())
}

func TestStore_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("splash: [unterminated"), 0o644))

	store := manifest.NewStore(manifest.Default(), manifest.WithFile(path))
	err := store.Init(context.Background())
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)

	<-store.Ready()
	assert.Equal(t, manifest.Default(), store.Get())
}

func TestStore_YAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "manifest.yaml")
	store := manifest.NewStore(manifest.Default(), manifest.WithFile(path))
	require.NoError(t, store.Init(context.Background()))

	_, err := store.Update(map[string]any{"forceUpdate": map[string]any{"button": "Install"}})
	require.NoError(t, err)

	loaded, err := manifest.Load(path, manifest.Default())
	require.NoError(t, err)
	assert.Equal(t, "Install", loaded.ForceUpdate.Button)
	assert.Equal(t, manifest.Default().Webview, loaded.Webview)
}

func TestStore_ResolvesSplashImage(t *testing.T) {
	store := manifest.NewStore(manifest.Default(), manifest.WithBaseURL("https://example.com/"))
	require.NoError(t, store.Init(context.Background()))

	patch := map[string]any{"splash": map[string]any{"image": "/static/splash.png"}}
	m, err := store.Update(patch)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/static/splash.png", m.Splash.Image)
	assert.Equal(t, "/static/splash.png", patch["splash"].(map[string]any)["image"])
}

func TestStore_InitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := manifest.NewStore(manifest.Default())
	assert.ErrorIs(t, store.Init(ctx), context.Canceled)
}

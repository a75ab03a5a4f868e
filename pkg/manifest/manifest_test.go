package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/liteforge/pkg/manifest"
)

func TestMerge(t *testing.T) {
	base := map[string]any{
		"title": "base",
		"count": 1,
		"nested": map[string]any{
			"a": "base-a",
			"b": "base-b",
		},
		"list": []any{"x", "y"},
	}

	t.Run("Patch overrides present keys", func(t *testing.T) {
		got := manifest.Merge(base, map[string]any{
			"title":  "patched",
			"nested": map[string]any{"b": "patched-b"},
			"list":   []any{"z"},
		})
		assert.Equal(t, map[string]any{
			"title":  "patched",
			"count":  1,
			"nested": map[string]any{"a": "base-a", "b": "patched-b"},
			"list":   []any{"z"},
		}, got)
	})

	t.Run("Base key set governs", func(t *testing.T) {
		got := manifest.Merge(base, map[string]any{"unknown": true, "nested": map[string]any{"c": "new"}})
		assert.NotContains(t, got, "unknown")
		assert.Equal(t, map[string]any{"a": "base-a", "b": "base-b"}, got["nested"])
	})

	t.Run("Scalar never replaces a nested map", func(t *testing.T) {
		got := manifest.Merge(base, map[string]any{"nested": "flat"})
		assert.Equal(t, base["nested"], got["nested"])
	})

	t.Run("Nil counts as absent", func(t *testing.T) {
		got := manifest.Merge(base, map[string]any{"title": nil})
		assert.Equal(t, "base", got["title"])
		assert.Equal(t, base, manifest.Merge(base, nil))
	})

	t.Run("Inputs are not modified", func(t *testing.T) {
		patch := map[string]any{"nested": map[string]any{"a": "changed"}}
		manifest.Merge(base, patch)
		assert.Equal(t, "base-a", base["nested"].(map[string]any)["a"])
		assert.Equal(t, map[string]any{"nested": map[string]any{"a": "changed"}}, patch)
	})
}

func TestApply(t *testing.T) {
	m, err := manifest.Apply(manifest.Default(), map[string]any{
		"minBuildNumber": float64(7),
		"webview": map[string]any{
			"linkPatterns": []any{
				map[string]any{"pattern": `^https://example\.com`, "action": "webview"},
				map[string]any{"pattern": `^[\w\W]+$`, "action": "browser"},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 7, m.MinBuildNumber)
	assert.Equal(t, manifest.Default().Webview.StatusBarColor, m.Webview.StatusBarColor)
	require.Len(t, m.Webview.LinkPatterns, 2)
	assert.Equal(t, manifest.ActionWebview, m.Route("https://example.com/cart"))
	assert.Equal(t, manifest.ActionBrowser, m.Route("https://other.org"))
}

func TestApply_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		patch map[string]any
	}{
		{"Color", map[string]any{"splash": map[string]any{"statusBarColor": "red"}}},
		{"Action", map[string]any{"webview": map[string]any{"linkPatterns": []any{map[string]any{"pattern": ".*", "action": "popup"}}}}},
		{"Pattern", map[string]any{"webview": map[string]any{"linkPatterns": []any{map[string]any{"pattern": "(", "action": "webview"}}}}},
		{"Link", map[string]any{"forceUpdate": map[string]any{"link": "http://insecure.example"}}},
		{"Type", map[string]any{"minBuildNumber": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Apply(manifest.Default(), tt.patch)
			assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
		})
	}
}

func TestRoute_DefaultsToWebview(t *testing.T) {
	m := manifest.Default()
	m.Webview.LinkPatterns = nil
	assert.Equal(t, manifest.ActionWebview, m.Route("https://anything"))
}

func TestResolveImage(t *testing.T) {
	assert.Equal(t, "https://example.com/img/splash.png", manifest.ResolveImage("https://example.com//", "/img/splash.png"))
	assert.Equal(t, "https://cdn.example/a.png", manifest.ResolveImage("https://example.com", "https://cdn.example/a.png"))
	assert.Equal(t, "a.png", manifest.ResolveImage("", "a.png"))
}

func TestClone(t *testing.T) {
	m := manifest.Default()
	c := m.Clone()
	c.Webview.LinkPatterns[0].Action = manifest.ActionWebview
	assert.Equal(t, manifest.ActionBrowser, m.Webview.LinkPatterns[0].Action)
}

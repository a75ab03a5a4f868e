package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		var buf bytes.Buffer
		New(slog.LevelInfo, WithOutput(&buf)).Info("Build started", "buildID", "b-1", "error", errors.New("boom"))
		assert.Contains(t, buf.String(), "build=b-1")
		assert.Contains(t, buf.String(), "err=boom")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		New(slog.LevelInfo, WithOutput(&buf), WithFormat(" JSON ")).Info("Build started", "buildID", "b-1")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "Build started", record["msg"])
		assert.Equal(t, "b-1", record["build"])
	})

	t.Run("Level", func(t *testing.T) {
		var buf bytes.Buffer
		New(slog.LevelWarn, WithOutput(&buf)).Info("hidden")
		assert.Empty(t, buf.String())
	})
}

package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew_DefaultConfig(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, New(nil))
}

func TestNew_JSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf, Level: slog.LevelInfo})

	logger.Info("test message", "key", "value")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "ts")
	assert.NotContains(t, entries[0], "time")
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "test message", entries[0]["msg"])
	assert.Equal(t, "value", entries[0]["key"])
}

func TestNew_GroupedTimeKeyUntouched(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf})

	logger.WithGroup("task").Info("done", "time", "5ms")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	group, ok := entries[0]["task"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5ms", group["time"])
}

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	t.Run("debug enabled", func(t *testing.T) {
		var buf bytes.Buffer
		New(&Config{Output: &buf, Debug: true}).Debug("debug message")
		assert.Contains(t, buf.String(), "debug message")
	})

	t.Run("info hides debug", func(t *testing.T) {
		var buf bytes.Buffer
		New(&Config{Output: &buf, Level: slog.LevelInfo}).Debug("debug message")
		assert.NotContains(t, buf.String(), "debug message")
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "runsel.log")

	logger, closer, err := OpenFile(path, slog.LevelInfo)
	require.NoError(t, err)
	logger.Info("first")
	require.NoError(t, closer.Close())

	logger, closer, err = OpenFile(path, slog.LevelInfo)
	require.NoError(t, err)
	logger.Info("second")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := decodeLines(t, data)
	require.Len(t, entries, 2, "file is appended, not truncated")
	assert.Equal(t, "first", entries[0]["msg"])
	assert.Equal(t, "second", entries[1]["msg"])
}

func TestOpenFile_BadDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, _, err := OpenFile(filepath.Join(blocker, "sub", "runsel.log"), slog.LevelInfo)
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	logger := Discard()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
}

func TestLogHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf, Level: slog.LevelDebug})

	LogSessionStart(logger, SessionInfo{Version: "1.0.0", Source: "items.yaml", Format: "yaml", Items: 3, Workers: 4, PID: 99})
	LogSessionEnd(logger, "selected", 2, 1500*time.Millisecond)
	LogSourceReload(logger, "items.yaml", 5)
	LogSourceReloadFailed(logger, "items.yaml", os.ErrNotExist)

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 4)

	assert.Equal(t, "session started", entries[0]["msg"])
	assert.Equal(t, float64(3), entries[0]["items"])
	assert.Equal(t, "yaml", entries[0]["format"])

	assert.Equal(t, "session ended", entries[1]["msg"])
	assert.Equal(t, float64(1500), entries[1]["elapsed_ms"])

	assert.Equal(t, "source reloaded", entries[2]["msg"])
	assert.Equal(t, float64(5), entries[2]["items"])

	assert.Equal(t, "WARN", entries[3]["level"])
	assert.Contains(t, entries[3]["error"], "not exist")
}

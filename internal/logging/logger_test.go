package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := newHandlerLogger(&buf, "text", slog.LevelInfo)
	logger.Info("boom", "error", "bad")
	assert.Contains(t, buf.String(), "err=bad")
	assert.NotContains(t, buf.String(), "error=bad")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newHandlerLogger(&buf, "json", slog.LevelDebug)
	logger.Debug("hello", "session_id", "s1")
	assert.Contains(t, buf.String(), `"session_id":"s1"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapflow.log")
	logger := NewWithOptions(Options{Level: slog.LevelInfo, File: path, MaxSizeMB: 1})
	logger.Info("written", "k", "v")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}

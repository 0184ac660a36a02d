package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestSetup_TUIWritesFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "prwatch.log")

	logger, closer, err := Setup(path, "info", true)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("cycle finished", "total", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cycle finished")
	assert.Contains(t, string(data), "total=3")
	assert.NotContains(t, string(data), "hidden")
}

func TestSetup_HeadlessAlsoWritesStderr(t *testing.T) {
	dir := t.TempDir()
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	defer stderr.Close()

	logger, closer, err := setup(filepath.Join(dir, "prwatch.log"), "debug", false, stderr)
	require.NoError(t, err)
	logger.Debug("polling")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(stderr.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "polling")
	assert.NotContains(t, string(data), "\x1b[", "non-terminal output is uncoloured")
}

func TestMultiHandler_RespectsPerHandlerLevel(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("cycle", "abc")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	logger.Info("fetched")
	logger.Warn("degraded")

	assert.Contains(t, debugBuf.String(), "fetched")
	assert.Contains(t, debugBuf.String(), "cycle=abc")
	assert.NotContains(t, warnBuf.String(), "fetched")
	assert.Contains(t, warnBuf.String(), "degraded")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	dataDir := filepath.Join(dir, "data", "prwatch")
	assert.Equal(t, "https://api.github.com/graphql", cfg.APIURL)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "state.db"), cfg.StateFile)
	assert.Equal(t, filepath.Join(dataDir, "badge.json"), cfg.BadgeFile)
	assert.Equal(t, filepath.Join(dataDir, "logs", "prwatch.log"), cfg.Log.File)
	assert.Equal(t, filepath.Join(dir, "config", "prwatch", "settings.toml"), cfg.SettingsFile)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Activity.Concurrency)
	assert.Equal(t, 30*24*time.Hour, cfg.InactivityThreshold)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	content := `
data_dir = "/var/lib/prwatch"
inactivity_threshold = "48h"

[log]
level = "DEBUG"

[activity]
concurrency = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "/var/lib/prwatch", cfg.DataDir)
	assert.Equal(t, "/var/lib/prwatch/state.db", cfg.StateFile)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Activity.Concurrency)
	assert.Equal(t, 48*time.Hour, cfg.InactivityThreshold)
}

func TestLoad_DefaultLocationFile(t *testing.T) {
	dir := isolate(t)
	configDir := filepath.Join(dir, "config", "prwatch")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(`badge_file = "/tmp/b.json"`), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.json", cfg.BadgeFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PRWATCH_LOG_LEVEL", "warn")
	t.Setenv("PRWATCH_SEARCH_MAX_RESULTS", "250")
	t.Setenv("PRWATCH_STATE_FILE", "/tmp/s.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 250, cfg.Search.MaxResults)
	assert.Equal(t, "/tmp/s.db", cfg.StateFile)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"level", map[string]string{"PRWATCH_LOG_LEVEL": "loud"}, "log.level"},
		{"concurrency", map[string]string{"PRWATCH_ACTIVITY_CONCURRENCY": "0"}, "activity.concurrency"},
		{"threshold", map[string]string{"PRWATCH_INACTIVITY_THRESHOLD": "-1h"}, "inactivity_threshold"},
		{"max results", map[string]string{"PRWATCH_SEARCH_MAX_RESULTS": "0"}, "search.max_results"},
		{"url", map[string]string{"PRWATCH_API_URL": "not a url"}, "api_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

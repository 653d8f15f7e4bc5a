package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bikepaths.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bike_path_resource_id: from-file
batch_size: 250
api_timeout: 10s
collection: pistes
log_format: json
`), 0o644))

	t.Setenv(EnvPrefix+"BIKE_PATH_RESOURCE_ID", "from-env")
	t.Setenv(EnvPrefix+"WRITE_CONCURRENCY", "2")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ResourceID)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, "pistes", cfg.Collection)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 2, cfg.WriteConcurrency)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: [1"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config file")

	t.Setenv(EnvPrefix+"BATCH_SIZE", "lots")
	_, err = Load("")
	assert.ErrorContains(t, err, "BATCH_SIZE")
}

func TestLoad_TimeoutSeconds(t *testing.T) {
	t.Setenv(EnvPrefix+"API_TIMEOUT", "45")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.APITimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty api url", func(c *Config) { c.APIBaseURL = " " }, "api_base_url"},
		{"empty db url", func(c *Config) { c.SurrealDBURL = "" }, "surrealdb_url"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"negative concurrency", func(c *Config) { c.WriteConcurrency = -1 }, "write_concurrency"},
		{"unknown format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, "text", slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("loaded", "records", 3)

	assert.Contains(t, stderr.String(), "msg=loaded")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["records"])
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, cleanup := SetupLogger(path, "json", slog.LevelInfo)
	logger.Info("run completed")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"run completed"`)
}

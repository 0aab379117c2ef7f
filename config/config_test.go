package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvlog/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  data_dir: /tmp/kvlog-test
  max_segment_size_bytes: 1048576
  sync_mode: interval
  flush_interval: 200ms
server:
  listen_address: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/kvlog-test", cfg.Store.DataDir)
	assert.Equal(t, int64(1048576), cfg.Store.MaxSegmentSizeBytes)
	assert.Equal(t, "interval", cfg.Store.SyncMode)
	assert.Equal(t, ":9090", cfg.Server.ListenAddress)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0.5, cfg.Store.CompactionThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Store.DirectIO)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad sync mode":     "store:\n  sync_mode: sometimes\n",
		"negative size":     "store:\n  max_segment_size_bytes: -1\n",
		"threshold too big": "store:\n  compaction_threshold: 1.5\n",
		"bad interval":      "store:\n  flush_interval: soon\n",
		"bad log level":     "logging:\n  level: loud\n",
		"empty data dir":    "store:\n  data_dir: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestStoreOptionsMapping(t *testing.T) {
	cfg := Default()
	cfg.Store.MaxSegmentSizeBytes = 4096
	cfg.Store.SyncMode = "interval"
	cfg.Store.FlushInterval = "250ms"
	cfg.Store.DirectIO = true

	opts := cfg.StoreOptions()
	assert.Equal(t, int64(4096), opts.MaxSegmentSize)
	assert.Equal(t, store.SyncInterval, opts.SyncMode)
	assert.Equal(t, 250*time.Millisecond, opts.FlushInterval)
	assert.True(t, opts.DirectIO)
	assert.NotNil(t, opts.Clock)
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg.Logging.Level = level
		assert.Equal(t, want, cfg.LogLevel())
	}
}

// Package config loads and validates the user-facing configuration for the
// kvlog store and its server. The engine itself never parses config; it
// consumes the plain store.Options produced here.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kvlog/store"
)

// StoreConfig holds engine-related configuration.
type StoreConfig struct {
	DataDir             string  `yaml:"data_dir"`
	MaxSegmentSizeBytes int64   `yaml:"max_segment_size_bytes"`
	SyncMode            string  `yaml:"sync_mode"`      // always | interval | never
	FlushInterval       string  `yaml:"flush_interval"` // used when sync_mode is interval
	CompactionThreshold float64 `yaml:"compaction_threshold"`
	DirectIO            bool    `yaml:"direct_io"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address"`
	DebugEnabled  bool   `yaml:"debug_enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Config is the root configuration document.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns a configuration with sensible defaults for every field.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			DataDir:             "data",
			MaxSegmentSizeBytes: store.DefaultMaxSegmentSize,
			SyncMode:            string(store.SyncAlways),
			FlushInterval:       store.DefaultFlushInterval.String(),
			CompactionThreshold: 0.5,
		},
		Server: ServerConfig{
			ListenAddress: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, layered over Default. A missing optional
// field keeps its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks all fields and reports the first problem found.
func (c *Config) Validate() error {
	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir must not be empty")
	}
	if c.Store.MaxSegmentSizeBytes <= 0 {
		return fmt.Errorf("store.max_segment_size_bytes must be positive, got %d", c.Store.MaxSegmentSizeBytes)
	}
	switch store.SyncMode(c.Store.SyncMode) {
	case store.SyncAlways, store.SyncInterval, store.SyncNever:
	default:
		return fmt.Errorf("store.sync_mode must be one of always, interval, never; got %q", c.Store.SyncMode)
	}
	if c.Store.FlushInterval != "" {
		if _, err := time.ParseDuration(c.Store.FlushInterval); err != nil {
			return fmt.Errorf("store.flush_interval: %w", err)
		}
	}
	if c.Store.CompactionThreshold < 0 || c.Store.CompactionThreshold > 1 {
		return fmt.Errorf("store.compaction_threshold must be within [0, 1], got %v", c.Store.CompactionThreshold)
	}
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

// StoreOptions maps the validated config onto engine options.
func (c *Config) StoreOptions() store.Options {
	opts := store.DefaultOptions()
	opts.MaxSegmentSize = c.Store.MaxSegmentSizeBytes
	opts.SyncMode = store.SyncMode(c.Store.SyncMode)
	opts.DirectIO = c.Store.DirectIO
	if c.Store.FlushInterval != "" {
		if d, err := time.ParseDuration(c.Store.FlushInterval); err == nil {
			opts.FlushInterval = d
		}
	}
	return opts
}

// LogLevel maps the configured level onto slog's.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

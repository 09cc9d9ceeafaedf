// Package config loads and validates photoport's TOML configuration.
package config

import (
	"fmt"

	"github.com/photoport/photoport/internal/chunk"
	"github.com/photoport/photoport/internal/graph"
)

// Config is the top-level configuration file structure.
type Config struct {
	API      APIConfig      `toml:"api"`
	Transfer TransferConfig `toml:"transfer"`
	Staging  StagingConfig  `toml:"staging"`
	Job      JobConfig      `toml:"job"`
	Logging  LoggingConfig  `toml:"logging"`
}

// APIConfig configures the destination API client.
type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	ClientID  string `toml:"client_id"`
	TokenPath string `toml:"token_path"`
	// Client-side request pacing. Zero disables the limiter.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// TransferConfig configures the chunked upload protocol.
type TransferConfig struct {
	ChunkSizeKiB int64 `toml:"chunk_size_kib"`
	Workers      int   `toml:"workers"`
}

// StagingConfig locates staged source content on disk.
type StagingConfig struct {
	Root string `toml:"root"`
}

// JobConfig configures per-job state.
type JobConfig struct {
	// StatePath is the step database location. Empty keeps the
	// idempotency cache in memory only (no resume across restarts).
	StatePath string `toml:"state_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           graph.DefaultBaseURL,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Transfer: TransferConfig{
			ChunkSizeKiB: chunk.DefaultSize / 1024,
			Workers:      1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// ChunkSizeBytes converts the configured chunk size to bytes.
func (c *TransferConfig) ChunkSizeBytes() int64 {
	return c.ChunkSizeKiB * 1024
}

// Validate rejects configurations that cannot work.
func Validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}

	if cfg.Transfer.ChunkSizeKiB <= 0 {
		return fmt.Errorf("transfer.chunk_size_kib must be positive, got %d", cfg.Transfer.ChunkSizeKiB)
	}

	if cfg.Transfer.Workers < 1 {
		return fmt.Errorf("transfer.workers must be at least 1, got %d", cfg.Transfer.Workers)
	}

	if cfg.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must not be negative")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}

	return nil
}

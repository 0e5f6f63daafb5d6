// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Store drivers understood by the repository layer.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration shared by the server and presenter.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the report store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is handed to the SQL driver. Ignored for memory.
	StoreDSN string `koanf:"store_dsn"`

	// QueueSize bounds the score-write queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of score-write workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the request-id cache used for idempotent writes.
	DedupeSize int `koanf:"dedupe_size"`

	// CopiedFlagTTLMS is how long the presenter shows "copied" after a score copy.
	CopiedFlagTTLMS int `koanf:"copied_flag_ttl_ms"`

	// ScoreWriteTimeoutMS bounds a single score write, queueing included.
	ScoreWriteTimeoutMS int `koanf:"score_write_timeout_ms"`

	// ServerURL points the presenter at a running server. Empty means in-process.
	ServerURL string `koanf:"server_url"`

	// LogFile receives presenter logs so they do not tear the terminal UI.
	LogFile string `koanf:"log_file"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		StoreDriver:         DriverMemory,
		QueueSize:           1_024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		CopiedFlagTTLMS:     2_000,
		ScoreWriteTimeoutMS: 5_000,
		LogFile:             "healthreview.log",
	}
}

// CopiedFlagTTL returns CopiedFlagTTLMS as a duration.
func (c *Config) CopiedFlagTTL() time.Duration {
	return time.Duration(c.CopiedFlagTTLMS) * time.Millisecond
}

// ScoreWriteTimeout returns ScoreWriteTimeoutMS as a duration.
func (c *Config) ScoreWriteTimeout() time.Duration {
	return time.Duration(c.ScoreWriteTimeoutMS) * time.Millisecond
}

// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory observation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// SchemaPath points at a YAML scoring schema that replaces the
	// embedded default for its year. Empty uses the embedded schemas only.
	SchemaPath string `koanf:"schema_path"`

	// ExpectedAllianceSize is the robot count of a complete alliance.
	ExpectedAllianceSize int `koanf:"expected_alliance_size"`

	// SkipIncompleteAlliances excludes alliances with the wrong robot count.
	SkipIncompleteAlliances bool `koanf:"skip_incomplete_alliances"`

	// MaxIterations bounds the relaxation passes of one solve.
	MaxIterations int `koanf:"max_iterations"`

	// ConvergenceThreshold stops the solve once no estimate moves further.
	ConvergenceThreshold float64 `koanf:"convergence_threshold"`

	// EPACacheSize bounds the team EPA cache.
	EPACacheSize int `koanf:"epa_cache_size"`

	// EPACacheTTLSeconds expires team EPA cache entries.
	EPACacheTTLSeconds int `koanf:"epa_cache_ttl_seconds"`

	// RecomputeIntervalSeconds re-solves on a ticker when data changed.
	// Zero disables the ticker.
	RecomputeIntervalSeconds int `koanf:"recompute_interval_seconds"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		QueueSize:                10_000,
		WorkerCount:              runtime.NumCPU(),
		MaxLeaderboardLimit:      100,
		ExpectedAllianceSize:     3,
		SkipIncompleteAlliances:  true,
		MaxIterations:            200,
		ConvergenceThreshold:     1e-4,
		EPACacheSize:             1024,
		EPACacheTTLSeconds:       300,
		RecomputeIntervalSeconds: 30,
	}
}

// EPACacheTTL returns the cache TTL as a duration.
func (c *Config) EPACacheTTL() time.Duration {
	return time.Duration(c.EPACacheTTLSeconds) * time.Second
}

// RecomputeInterval returns the recompute ticker period; zero disables it.
func (c *Config) RecomputeInterval() time.Duration {
	return time.Duration(c.RecomputeIntervalSeconds) * time.Second
}

// Validate reports the first invalid setting as a *FieldError.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr", "must not be empty")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format", fmt.Sprintf("must be text or json, got %q", c.LogFormat))
	case c.QueueSize <= 0:
		return invalid("queue_size", "must be positive")
	case c.WorkerCount <= 0:
		return invalid("worker_count", "must be positive")
	case c.MaxLeaderboardLimit <= 0:
		return invalid("max_leaderboard_limit", "must be positive")
	case c.ExpectedAllianceSize <= 0:
		return invalid("expected_alliance_size", "must be positive")
	case c.MaxIterations <= 0:
		return invalid("max_iterations", "must be positive")
	case !(c.ConvergenceThreshold > 0):
		return invalid("convergence_threshold", "must be positive")
	case c.EPACacheSize <= 0:
		return invalid("epa_cache_size", "must be positive")
	case c.EPACacheTTLSeconds <= 0:
		return invalid("epa_cache_ttl_seconds", "must be positive")
	case c.RecomputeIntervalSeconds < 0:
		return invalid("recompute_interval_seconds", "must not be negative")
	}
	return nil
}

// Package config defines the top-level configuration for trendbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRENDBOT_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Scoring    ScoringConfig    `toml:"scoring"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters. With Enabled false
// the stores live in process memory, which suits dry runs only.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs the run lock,
// the top-trends cache, run events and API rate limiting.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters for run archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// PolymarketConfig holds the vendor endpoints and request pacing.
type PolymarketConfig struct {
	MarketsURL string `toml:"markets_url"`
	// TicksURL must contain "{market_id}".
	TicksURL          string   `toml:"ticks_url"`
	PageSize          int      `toml:"page_size"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           duration `toml:"timeout"`
	Concurrency       int      `toml:"concurrency"`
	EnableLiquidity   bool     `toml:"enable_liquidity"`
}

// ScoringConfig holds the run loop parameters.
type ScoringConfig struct {
	Interval             duration `toml:"interval"`
	MinLiquidity         float64  `toml:"min_liquidity"`
	LockTTL              duration `toml:"lock_ttl"`
	RefreshCategoryIndex bool     `toml:"refresh_category_index"`
	ArchiveRuns          bool     `toml:"archive_runs"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// LogConfig selects the log sink. An empty File logs to stdout.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days"`
	MaxBackups int    `toml:"max_backups"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "trendbot",
			User:          "trendbot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			CacheTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "trendbot-runs",
			ForcePathStyle: true,
			Prefix:         "trendbot",
		},
		Polymarket: PolymarketConfig{
			MarketsURL:        "https://api.polymarket.com/markets",
			TicksURL:          "https://api.polymarket.com/markets/{market_id}/candlesticks?interval=1h&limit=48",
			PageSize:          500,
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           duration{15 * time.Second},
			Concurrency:       4,
			EnableLiquidity:   true,
		},
		Scoring: ScoringConfig{
			Interval:             duration{30 * time.Minute},
			MinLiquidity:         0,
			LockTTL:              duration{20 * time.Minute},
			RefreshCategoryIndex: true,
			ArchiveRuns:          false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxAgeDays: 14,
			MaxBackups: 5,
			Compress:   true,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Run modes.
const (
	ModeIngest = "ingest"
	ModeScore  = "score"
	ModeServer = "server"
	ModeFull   = "full"
)

var validModes = map[string]bool{
	ModeIngest: true,
	ModeScore:  true,
	ModeServer: true,
	ModeFull:   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: ingest, score, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	} else if mode != ModeFull {
		errs = append(errs, fmt.Sprintf("postgres: must be enabled for mode %q; memory storage only serves full mode", c.Mode))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.CacheTTL.Duration < 0 {
			errs = append(errs, "redis: cache_ttl must not be negative")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if c.Scoring.ArchiveRuns && !c.S3.Enabled {
		errs = append(errs, "scoring: archive_runs requires s3.enabled")
	}

	// Polymarket
	if mode == ModeIngest || mode == ModeFull {
		if c.Polymarket.MarketsURL == "" {
			errs = append(errs, "polymarket: markets_url must not be empty")
		}
		if !strings.Contains(c.Polymarket.TicksURL, "{market_id}") {
			errs = append(errs, "polymarket: ticks_url must contain {market_id}")
		}
	}
	if c.Polymarket.PageSize < 1 {
		errs = append(errs, "polymarket: page_size must be >= 1")
	}
	if c.Polymarket.RequestsPerSecond < 0 {
		errs = append(errs, "polymarket: requests_per_second must not be negative")
	}
	if c.Polymarket.Concurrency < 1 {
		errs = append(errs, "polymarket: concurrency must be >= 1")
	}

	// Scoring
	if c.Scoring.Interval.Duration < 0 {
		errs = append(errs, "scoring: interval must not be negative")
	}
	if c.Scoring.MinLiquidity < 0 {
		errs = append(errs, "scoring: min_liquidity must not be negative")
	}
	if c.Scoring.LockTTL.Duration <= 0 {
		errs = append(errs, "scoring: lock_ttl must be > 0")
	}

	// Server
	if c.Server.Enabled || mode == ModeServer {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Log
	if c.Log.File != "" && c.Log.MaxSizeMB < 1 {
		errs = append(errs, "log: max_size_mb must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

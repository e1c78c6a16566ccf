package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trendbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Minute, cfg.Scoring.Interval.Duration)
	assert.Contains(t, cfg.Polymarket.TicksURL, "{market_id}")
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "score"
log_level = "debug"

[postgres]
dsn = "postgres://u:p@db:5432/trendbot"

[scoring]
interval = "10m"
min_liquidity = 500.0
archive_runs = true

[s3]
enabled = true
bucket = "archive"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeScore, cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.Scoring.Interval.Duration)
	assert.Equal(t, 500.0, cfg.Scoring.MinLiquidity)
	assert.Equal(t, "archive", cfg.S3.Bucket)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 20*time.Minute, cfg.Scoring.LockTTL.Duration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRENDBOT_MODE", "ingest")
	t.Setenv("TRENDBOT_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("TRENDBOT_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("TRENDBOT_SCORING_LOCK_TTL", "90s")
	t.Setenv("TRENDBOT_POLYMARKET_ENABLE_LIQUIDITY", "false")
	t.Setenv("TRENDBOT_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeIngest, cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.Scoring.LockTTL.Duration)
	assert.False(t, cfg.Polymarket.EnableLiquidity)
	assert.Equal(t, 8000, cfg.Server.Port, "unparsable values are ignored")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Polymarket.TicksURL = "https://example.com/candles"
	cfg.Scoring.LockTTL.Duration = 0
	cfg.Scoring.ArchiveRuns = true

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, `unknown log_level "loud"`)
	assert.Contains(t, msg, "scoring: lock_ttl")
	assert.Contains(t, msg, "scoring: archive_runs requires s3.enabled")
}

func TestValidate_TicksURLTemplate(t *testing.T) {
	cfg := Defaults()
	cfg.Polymarket.TicksURL = "https://example.com/candles"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{market_id}")

	cfg.Mode = ModeServer
	assert.NoError(t, cfg.Validate(), "server mode never calls the vendor")
}

func TestValidate_MemoryStorageOnlyInFullMode(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = false
	assert.NoError(t, cfg.Validate())

	cfg.Mode = ModeServer
	assert.Error(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = "postgres://u:secret@db/trendbot"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Empty(t, out.S3.AccessKey, "empty secrets stay empty")
	assert.Equal(t, "redis-secret", cfg.Redis.Password)

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}

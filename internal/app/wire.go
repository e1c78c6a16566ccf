package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/trendbot/internal/blob/s3"
	"github.com/alanyoungcy/trendbot/internal/cache/redis"
	"github.com/alanyoungcy/trendbot/internal/config"
	"github.com/alanyoungcy/trendbot/internal/domain"
	"github.com/alanyoungcy/trendbot/internal/store/memory"
	"github.com/alanyoungcy/trendbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional parts (cache, lock, bus, limiter, archiver) are
// nil when their backend is disabled.
type Dependencies struct {
	// Stores
	MarketStore   domain.MarketStore
	TickStore     domain.TickStore
	TrendStore    domain.TrendStore
	ViewStore     domain.ViewStore
	CategoryIndex domain.CategoryIndexStore
	AuditStore    domain.AuditStore

	// Redis
	ViewCache   domain.ViewCache
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Blob storage
	RunArchiver domain.RunArchiver

	// Checks are the named dependency probes served by the health endpoint.
	Checks map[string]func(context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]func(context.Context) error)}

	// --- PostgreSQL, or process memory for dry runs ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.TickStore = postgres.NewTickStore(pool)
		deps.TrendStore = postgres.NewTrendStore(pool)
		deps.ViewStore = postgres.NewViewStore(pool)
		deps.CategoryIndex = postgres.NewCategoryIndexStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	} else {
		logger.WarnContext(ctx, "postgres disabled, using in-memory stores; nothing will be persisted")
		db := memory.NewDB()
		deps.MarketStore = memory.NewMarketStore(db)
		deps.TickStore = memory.NewTickStore(db)
		deps.TrendStore = memory.NewTrendStore(db)
		deps.ViewStore = memory.NewViewStore(db)
		deps.CategoryIndex = memory.NewCategoryIndexStore(db)
		deps.AuditStore = memory.NewAuditStore(db)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		if cfg.Redis.CacheTTL.Duration > 0 {
			deps.ViewCache = redis.NewViewCache(redisClient, cfg.Redis.CacheTTL.Duration)
		}
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- S3 run archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.RunArchiver = s3blob.NewRunArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), cfg.S3.Prefix)
		deps.Checks["s3"] = s3Client.Health
	}

	return deps, cleanup, nil
}

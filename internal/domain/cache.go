package domain

import (
	"context"
	"time"
)

// ViewCache caches top-trends results between runs. Implementations return
// ErrNotFound on a miss.
type ViewCache interface {
	GetTopTrends(ctx context.Context, q TopTrendsQuery) ([]TopTrend, error)
	SetTopTrends(ctx context.Context, q TopTrendsQuery, rows []TopTrend) error
	Invalidate(ctx context.Context) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
	// Extend resets the TTL of a lock this process holds. It returns
	// ErrLockLost when the lock expired or passed to another holder.
	Extend(ctx context.Context, key string, ttl time.Duration) error
}

// SignalBus provides pub/sub for run events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ChannelRuns is the bus channel a RunResult is published on after each run.
const ChannelRuns = "trendbot:runs"

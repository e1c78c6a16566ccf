package domain

import (
	"context"
	"time"
)

// MarketStore is the market registry. Markets are upserted by UID and never
// deleted.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByUID(ctx context.Context, uid string) (Market, error)
	ListOpen(ctx context.Context) ([]Market, error)
}

// TickStore persists price ticks with last-write-wins on (market_uid, ts).
type TickStore interface {
	UpsertBatch(ctx context.Context, ticks []PriceTick) error
	ListByMarket(ctx context.Context, marketUID string, since, until time.Time) ([]PriceTick, error)
}

// TrendStore is the write side of a scoring run.
type TrendStore interface {
	// LoadSignalInputs returns one row per open market that has a tick at or
	// before runAt, joined with its baseline tick at or before runAt-24h.
	LoadSignalInputs(ctx context.Context, runAt time.Time) ([]SignalInput, error)
	// SaveRun inserts signals (existing keys are left untouched) and upserts
	// scores, atomically.
	SaveRun(ctx context.Context, signals []TrendSignal, scores []TrendScore) error
	// AssignRanks ranks every score of the most recent run_at in the store by
	// trend_score descending, market_uid ascending. It returns the number of
	// rows ranked.
	AssignRanks(ctx context.Context) (int64, error)
	// ListRunScores returns all scores of one run ordered by rank.
	ListRunScores(ctx context.Context, runAt time.Time) ([]TrendScore, error)
}

// ViewStore serves the read-only views. Every method returns an empty slice,
// not an error, when nothing matches.
type ViewStore interface {
	TopTrends(ctx context.Context, q TopTrendsQuery) ([]TopTrend, error)
	CategoryMomentum(ctx context.Context, days int) ([]CategoryMomentum, error)
	Timeline(ctx context.Context, marketUID string) ([]TimelinePoint, error)
	SearchMarkets(ctx context.Context, q string, limit int) ([]MarketSummary, error)
}

// CategoryIndexStore rolls scores up into the daily category momentum index.
type CategoryIndexStore interface {
	RefreshDay(ctx context.Context, day time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}

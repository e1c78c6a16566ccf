package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// TickStore implements domain.TickStore using PostgreSQL.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a new TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

// UpsertBatch writes ticks in one batch; a repeated (market_uid, ts) pair
// overwrites the stored values.
func (s *TickStore) UpsertBatch(ctx context.Context, ticks []domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	const query = `
		INSERT INTO price_tick (market_uid, ts, price, volume_24h, liquidity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (market_uid, ts) DO UPDATE SET
			price      = EXCLUDED.price,
			volume_24h = EXCLUDED.volume_24h,
			liquidity  = EXCLUDED.liquidity`

	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(query, t.MarketUID, t.TS.UTC(), t.Price, t.Volume24h, t.Liquidity)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range ticks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert tick %s@%s: %w",
				ticks[i].MarketUID, ticks[i].TS.Format(time.RFC3339), err)
		}
	}
	return nil
}

// ListByMarket returns a market's ticks with since <= ts <= until, oldest
// first.
func (s *TickStore) ListByMarket(ctx context.Context, marketUID string, since, until time.Time) ([]domain.PriceTick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_uid, ts, price, volume_24h, liquidity
		FROM price_tick
		WHERE market_uid = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts`, marketUID, since, until)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks %s: %w", marketUID, err)
	}
	defer rows.Close()

	var ticks []domain.PriceTick
	for rows.Next() {
		var t domain.PriceTick
		if err := rows.Scan(&t.MarketUID, &t.TS, &t.Price, &t.Volume24h, &t.Liquidity); err != nil {
			return nil, fmt.Errorf("postgres: scan tick: %w", err)
		}
		t.TS = t.TS.UTC()
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list ticks rows: %w", err)
	}
	return ticks, nil
}

var _ domain.TickStore = (*TickStore)(nil)

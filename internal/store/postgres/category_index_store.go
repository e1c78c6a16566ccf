package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// CategoryIndexStore implements domain.CategoryIndexStore using PostgreSQL.
type CategoryIndexStore struct {
	pool *pgxpool.Pool
}

// NewCategoryIndexStore creates a new CategoryIndexStore backed by the given
// connection pool.
func NewCategoryIndexStore(pool *pgxpool.Pool) *CategoryIndexStore {
	return &CategoryIndexStore{pool: pool}
}

// RefreshDay recomputes the index row of every category scored on day's UTC
// date. momentum_7d is the mean trend_score over the trailing seven days
// minus 50; the averages cover the day itself.
func (s *CategoryIndexStore) RefreshDay(ctx context.Context, day time.Time) (int64, error) {
	const query = `
		WITH week AS (
			SELECT category, trend_score, dvol_24h, dprice_24h,
			       (run_at AT TIME ZONE 'UTC')::date AS d
			FROM trend_score
			WHERE category IS NOT NULL
			  AND run_at >= ($1::date - 6)::timestamp AT TIME ZONE 'UTC'
			  AND run_at <  ($1::date + 1)::timestamp AT TIME ZONE 'UTC'
		)
		INSERT INTO trend_category_index (category, date, momentum_7d, avg_dvol_24h, avg_dprice_24h, updated_at)
		SELECT category, $1::date,
		       avg(trend_score) - 50,
		       avg(dvol_24h)   FILTER (WHERE d = $1::date),
		       avg(dprice_24h) FILTER (WHERE d = $1::date),
		       NOW()
		FROM week
		GROUP BY category
		HAVING bool_or(d = $1::date)
		ON CONFLICT (category, date) DO UPDATE SET
			momentum_7d    = EXCLUDED.momentum_7d,
			avg_dvol_24h   = EXCLUDED.avg_dvol_24h,
			avg_dprice_24h = EXCLUDED.avg_dprice_24h,
			updated_at     = NOW()`

	y, m, d := day.UTC().Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	tag, err := s.pool.Exec(ctx, query, date)
	if err != nil {
		return 0, fmt.Errorf("postgres: refresh category index %s: %w", date.Format(time.DateOnly), err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.CategoryIndexStore = (*CategoryIndexStore)(nil)

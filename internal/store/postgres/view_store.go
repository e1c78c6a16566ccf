package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// ViewStore implements domain.ViewStore using PostgreSQL. Queries run on the
// pool outside any write transaction.
type ViewStore struct {
	pool *pgxpool.Pool
}

// NewViewStore creates a new ViewStore backed by the given connection pool.
func NewViewStore(pool *pgxpool.Pool) *ViewStore {
	return &ViewStore{pool: pool}
}

// TopTrends returns up to q.N ranked rows of the latest run, optionally
// restricted to one category.
func (s *ViewStore) TopTrends(ctx context.Context, q domain.TopTrendsQuery) ([]domain.TopTrend, error) {
	const query = `
		SELECT s.rank, m.question, s.trend_score,
		       s.dvol_24h, s.dprice_24h, s.dliq_24h,
		       s.price_now, s.volume_24h_now, s.liquidity_now,
		       m.category, m.vendor, m.url, m.created_at, m.market_uid
		FROM trend_score s
		JOIN market m ON m.market_uid = s.market_uid
		WHERE s.run_at = (SELECT max(run_at) FROM trend_score)
		  AND s.rank IS NOT NULL
		  AND ($1 = '' OR m.category = $1)
		ORDER BY s.rank ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, q.Category, q.N)
	if err != nil {
		return nil, fmt.Errorf("postgres: top trends: %w", err)
	}
	defer rows.Close()

	out := []domain.TopTrend{}
	for rows.Next() {
		var (
			t    domain.TopTrend
			rank int32
		)
		if err := rows.Scan(
			&rank, &t.Market, &t.TrendScore,
			&t.DVol24h, &t.DPrice24h, &t.DLiq24h,
			&t.PriceNow, &t.Volume24hNow, &t.LiquidityNow,
			&t.Category, &t.Vendor, &t.URL, &t.CreatedAt, &t.MarketUID,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan top trend: %w", err)
		}
		t.Rank = int(rank)
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: top trends rows: %w", err)
	}
	return out, nil
}

// CategoryMomentum returns index rows dated within the last days UTC days,
// newest first then by category.
func (s *ViewStore) CategoryMomentum(ctx context.Context, days int) ([]domain.CategoryMomentum, error) {
	const query = `
		SELECT category, date, momentum_7d, avg_dvol_24h, avg_dprice_24h
		FROM trend_category_index
		WHERE date >= (now() AT TIME ZONE 'UTC')::date - $1::int
		ORDER BY date DESC, category ASC`

	rows, err := s.pool.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("postgres: category momentum: %w", err)
	}
	defer rows.Close()

	out := []domain.CategoryMomentum{}
	for rows.Next() {
		var c domain.CategoryMomentum
		if err := rows.Scan(&c.Category, &c.Date, &c.Momentum7d, &c.AvgDVol24h, &c.AvgDPrice24h); err != nil {
			return nil, fmt.Errorf("postgres: scan category momentum: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: category momentum rows: %w", err)
	}
	return out, nil
}

// Timeline returns every signal of one market with its score, when scored,
// oldest run first.
func (s *ViewStore) Timeline(ctx context.Context, marketUID string) ([]domain.TimelinePoint, error) {
	const query = `
		SELECT g.run_at, s.trend_score, s.rank,
		       g.dvol_24h, g.dprice_24h, g.dliq_24h, g.freshness
		FROM trend_signal g
		LEFT JOIN trend_score s ON s.market_uid = g.market_uid AND s.run_at = g.run_at
		WHERE g.market_uid = $1
		ORDER BY g.run_at ASC`

	rows, err := s.pool.Query(ctx, query, marketUID)
	if err != nil {
		return nil, fmt.Errorf("postgres: timeline %s: %w", marketUID, err)
	}
	defer rows.Close()

	out := []domain.TimelinePoint{}
	for rows.Next() {
		var (
			p    domain.TimelinePoint
			rank *int32
		)
		if err := rows.Scan(
			&p.Timestamp, &p.TrendScore, &rank,
			&p.DVol24h, &p.DPrice24h, &p.DLiq24h, &p.Freshness,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan timeline point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		if rank != nil {
			r := int(*rank)
			p.Rank = &r
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: timeline rows: %w", err)
	}
	return out, nil
}

// SearchMarkets returns up to limit markets whose question contains q,
// case-insensitively, newest first. q is matched literally.
func (s *ViewStore) SearchMarkets(ctx context.Context, q string, limit int) ([]domain.MarketSummary, error) {
	const query = `
		SELECT market_uid, vendor, question, category, url, created_at, status
		FROM market
		WHERE question ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at DESC, market_uid
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, escapeLike(q), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search markets: %w", err)
	}
	defer rows.Close()

	out := []domain.MarketSummary{}
	for rows.Next() {
		var m domain.MarketSummary
		if err := rows.Scan(&m.MarketUID, &m.Vendor, &m.Market, &m.Category, &m.URL, &m.CreatedAt, &m.Status); err != nil {
			return nil, fmt.Errorf("postgres: scan market summary: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search markets rows: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ domain.ViewStore = (*ViewStore)(nil)

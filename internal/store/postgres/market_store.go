package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// vendor and created_at are first-seen values and are not overwritten.
const upsertMarketQuery = `
	INSERT INTO market (
		market_uid, vendor, question, category,
		created_at, close_time, url, status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (market_uid) DO UPDATE SET
		question   = EXCLUDED.question,
		category   = EXCLUDED.category,
		close_time = EXCLUDED.close_time,
		url        = EXCLUDED.url,
		status     = EXCLUDED.status,
		updated_at = NOW()`

// UpsertBatch inserts or updates markets in a single batch.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		if m.UID == "" {
			return fmt.Errorf("postgres: upsert market: empty uid: %w", domain.ErrInvalidArgument)
		}
		batch.Queue(upsertMarketQuery,
			m.UID, m.Vendor, m.Question, nullString(m.Category),
			m.CreatedAt, m.CloseTime, m.URL, string(m.Status),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, m := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market %s: %w", m.UID, err)
		}
	}
	return nil
}

const marketCols = `market_uid, vendor, question, category, created_at, close_time, url, status`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m        domain.Market
		category *string
		status   string
	)
	if err := row.Scan(
		&m.UID, &m.Vendor, &m.Question, &category,
		&m.CreatedAt, &m.CloseTime, &m.URL, &status,
	); err != nil {
		return domain.Market{}, err
	}
	if category != nil {
		m.Category = *category
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByUID retrieves a market by its UID.
func (s *MarketStore) GetByUID(ctx context.Context, uid string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM market WHERE market_uid = $1`, uid)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", uid, err)
	}
	return m, nil
}

// ListOpen returns every open market ordered by UID.
func (s *MarketStore) ListOpen(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM market WHERE status = $1 ORDER BY market_uid`,
		string(domain.MarketStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open markets rows: %w", err)
	}
	return markets, nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.MarketStore = (*MarketStore)(nil)

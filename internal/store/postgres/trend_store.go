package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// TrendStore implements domain.TrendStore using PostgreSQL.
type TrendStore struct {
	pool *pgxpool.Pool
}

// NewTrendStore creates a new TrendStore backed by the given connection pool.
func NewTrendStore(pool *pgxpool.Pool) *TrendStore {
	return &TrendStore{pool: pool}
}

// LoadSignalInputs picks, per open market, the latest tick at or before
// runAt and the latest tick at or before runAt-24h. Markets without a current
// tick do not appear.
func (s *TrendStore) LoadSignalInputs(ctx context.Context, runAt time.Time) ([]domain.SignalInput, error) {
	const query = `
		WITH cur AS (
			SELECT DISTINCT ON (market_uid) market_uid, ts, price, volume_24h, liquidity
			FROM price_tick
			WHERE ts <= $1
			ORDER BY market_uid, ts DESC
		),
		base AS (
			SELECT DISTINCT ON (market_uid) market_uid, ts, price, volume_24h, liquidity
			FROM price_tick
			WHERE ts <= $2
			ORDER BY market_uid, ts DESC
		)
		SELECT m.market_uid, m.vendor, m.category, m.created_at,
		       cur.ts, cur.price, cur.volume_24h, cur.liquidity,
		       base.ts, base.price, base.volume_24h, base.liquidity
		FROM market m
		JOIN cur ON cur.market_uid = m.market_uid
		LEFT JOIN base ON base.market_uid = m.market_uid
		WHERE m.status = $3
		ORDER BY m.market_uid`

	rows, err := s.pool.Query(ctx, query,
		runAt, runAt.Add(-24*time.Hour), string(domain.MarketStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("postgres: load signal inputs: %w", err)
	}
	defer rows.Close()

	var inputs []domain.SignalInput
	for rows.Next() {
		var (
			in       domain.SignalInput
			category *string
			baseTS   *time.Time
			base     domain.PriceTick
		)
		if err := rows.Scan(
			&in.MarketUID, &in.Vendor, &category, &in.CreatedAt,
			&in.Current.TS, &in.Current.Price, &in.Current.Volume24h, &in.Current.Liquidity,
			&baseTS, &base.Price, &base.Volume24h, &base.Liquidity,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal input: %w", err)
		}
		if category != nil {
			in.Category = *category
		}
		in.Current.MarketUID = in.MarketUID
		if baseTS != nil {
			base.MarketUID = in.MarketUID
			base.TS = *baseTS
			in.Baseline = &base
		}
		inputs = append(inputs, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load signal inputs rows: %w", err)
	}
	return inputs, nil
}

// SaveRun writes a run's signals and scores in one transaction. Signals are
// insert-or-ignore; scores overwrite everything except rank.
func (s *TrendStore) SaveRun(ctx context.Context, signals []domain.TrendSignal, scores []domain.TrendScore) error {
	const insertSignal = `
		INSERT INTO trend_signal (market_uid, run_at, dvol_24h, dprice_24h, dliq_24h, freshness)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market_uid, run_at) DO NOTHING`

	const upsertScore = `
		INSERT INTO trend_score (
			market_uid, run_at, trend_score, category, vendor,
			dvol_24h, dprice_24h, dliq_24h,
			price_now, volume_24h_now, liquidity_now
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (market_uid, run_at) DO UPDATE SET
			trend_score    = EXCLUDED.trend_score,
			category       = EXCLUDED.category,
			vendor         = EXCLUDED.vendor,
			dvol_24h       = EXCLUDED.dvol_24h,
			dprice_24h     = EXCLUDED.dprice_24h,
			dliq_24h       = EXCLUDED.dliq_24h,
			price_now      = EXCLUDED.price_now,
			volume_24h_now = EXCLUDED.volume_24h_now,
			liquidity_now  = EXCLUDED.liquidity_now`

	if len(signals) == 0 && len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sig := range signals {
		batch.Queue(insertSignal,
			sig.MarketUID, sig.RunAt, sig.DVol24h, sig.DPrice24h, sig.DLiq24h, sig.Freshness)
	}
	for _, sc := range scores {
		batch.Queue(upsertScore,
			sc.MarketUID, sc.RunAt, sc.Score, nullString(sc.Category), sc.Vendor,
			sc.DVol24h, sc.DPrice24h, sc.DLiq24h,
			sc.PriceNow, sc.Volume24hNow, sc.LiquidityNow)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("postgres: save run: %w", err)
	}
	return nil
}

// AssignRanks ranks the latest run by trend_score descending, market_uid
// ascending. The (run_at, rank) constraint is deferred, so renumbering within
// the single statement cannot collide.
func (s *TrendStore) AssignRanks(ctx context.Context) (int64, error) {
	const query = `
		WITH latest AS (
			SELECT max(run_at) AS run_at FROM trend_score
		),
		ranked AS (
			SELECT s.market_uid, s.run_at,
			       ROW_NUMBER() OVER (ORDER BY s.trend_score DESC, s.market_uid ASC) AS rn
			FROM trend_score s
			JOIN latest l ON s.run_at = l.run_at
		)
		UPDATE trend_score t
		SET rank = ranked.rn
		FROM ranked
		WHERE t.market_uid = ranked.market_uid AND t.run_at = ranked.run_at`

	tag, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("postgres: assign ranks: %w", err)
	}
	return tag.RowsAffected(), nil
}

const scoreCols = `market_uid, run_at, trend_score, rank, category, vendor,
	dvol_24h, dprice_24h, dliq_24h, price_now, volume_24h_now, liquidity_now`

// ListRunScores returns the scores of one run, ranked rows first.
func (s *TrendStore) ListRunScores(ctx context.Context, runAt time.Time) ([]domain.TrendScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreCols+` FROM trend_score WHERE run_at = $1 ORDER BY rank ASC NULLS LAST, market_uid`,
		runAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: list run scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.TrendScore
	for rows.Next() {
		var (
			sc       domain.TrendScore
			rank     *int32
			category *string
		)
		if err := rows.Scan(
			&sc.MarketUID, &sc.RunAt, &sc.Score, &rank, &category, &sc.Vendor,
			&sc.DVol24h, &sc.DPrice24h, &sc.DLiq24h,
			&sc.PriceNow, &sc.Volume24hNow, &sc.LiquidityNow,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run score: %w", err)
		}
		sc.RunAt = sc.RunAt.UTC()
		if rank != nil {
			r := int(*rank)
			sc.Rank = &r
		}
		if category != nil {
			sc.Category = *category
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list run scores rows: %w", err)
	}
	return scores, nil
}

var _ domain.TrendStore = (*TrendStore)(nil)

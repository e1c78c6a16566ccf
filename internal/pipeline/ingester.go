package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/trendbot/internal/domain"
	"github.com/alanyoungcy/trendbot/internal/service"
)

// VendorFetcher retrieves markets and candles from the vendor API.
type VendorFetcher interface {
	FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error)
	FetchCandles(ctx context.Context, vendorID string) ([]domain.TickRecord, error)
}

// IngestSyncer persists vendor records.
type IngestSyncer interface {
	SyncMarkets(ctx context.Context, recs []domain.MarketRecord) ([]domain.Market, error)
	SyncTicks(ctx context.Context, marketUID string, recs []domain.TickRecord) (int, error)
}

// IngestResult summarises one ingestion pass.
type IngestResult struct {
	Markets       int `json:"markets"`
	CandleFetches int `json:"candle_fetches"`
	CandleFailed  int `json:"candle_failed"`
	Ticks         int `json:"ticks"`
}

// Ingester pulls the market listing, upserts it, then pulls candles for every
// open market. A failure for one market's candles is logged and skipped; that
// market simply has no fresh tick in the next run.
type Ingester struct {
	fetcher     VendorFetcher
	syncer      IngestSyncer
	concurrency int
	logger      *slog.Logger
}

// NewIngester creates an Ingester fetching candles for up to concurrency
// markets at a time.
func NewIngester(fetcher VendorFetcher, syncer IngestSyncer, concurrency int, logger *slog.Logger) *Ingester {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Ingester{
		fetcher:     fetcher,
		syncer:      syncer,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "ingester")),
	}
}

// Run executes one ingestion pass.
func (in *Ingester) Run(ctx context.Context) (IngestResult, error) {
	var res IngestResult

	recs, err := in.fetcher.FetchMarkets(ctx)
	if err != nil {
		return res, fmt.Errorf("pipeline: fetch markets: %w", err)
	}
	markets, err := in.syncer.SyncMarkets(ctx, recs)
	if err != nil {
		return res, fmt.Errorf("pipeline: sync markets: %w", err)
	}
	res.Markets = len(markets)

	var (
		ticks  atomic.Int64
		failed atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for _, m := range markets {
		if m.Status != domain.MarketStatusOpen {
			continue
		}
		res.CandleFetches++
		uid := m.UID
		vendorID := service.VendorID(uid)
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			candles, err := in.fetcher.FetchCandles(gctx, vendorID)
			if err != nil {
				failed.Add(1)
				in.logger.WarnContext(gctx, "candle fetch failed",
					slog.String("market_uid", uid),
					slog.String("error", err.Error()),
				)
				return nil
			}
			n, err := in.syncer.SyncTicks(gctx, uid, candles)
			if err != nil {
				failed.Add(1)
				in.logger.WarnContext(gctx, "tick sync failed",
					slog.String("market_uid", uid),
					slog.String("error", err.Error()),
				)
				return nil
			}
			ticks.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("pipeline: ingest candles: %w", err)
	}
	res.Ticks = int(ticks.Load())
	res.CandleFailed = int(failed.Load())

	in.logger.InfoContext(ctx, "ingest complete",
		slog.Int("markets", res.Markets),
		slog.Int("candle_fetches", res.CandleFetches),
		slog.Int("candle_failed", res.CandleFailed),
		slog.Int("ticks", res.Ticks),
	)
	return res, nil
}

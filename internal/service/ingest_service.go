package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

const marketUIDPrefix = "poly_"

// IngestService turns vendor records into registry markets and ticks and
// upserts them.
type IngestService struct {
	markets domain.MarketStore
	ticks   domain.TickStore
	logger  *slog.Logger
}

// NewIngestService creates an IngestService.
func NewIngestService(markets domain.MarketStore, ticks domain.TickStore, logger *slog.Logger) *IngestService {
	return &IngestService{
		markets: markets,
		ticks:   ticks,
		logger:  logger.With(slog.String("component", "ingest_service")),
	}
}

// MarketUID returns the registry identity of a vendor market id.
func MarketUID(vendorID string) string {
	return marketUIDPrefix + vendorID
}

// VendorID is the inverse of MarketUID.
func VendorID(marketUID string) string {
	return strings.TrimPrefix(marketUID, marketUIDPrefix)
}

// MarketFromRecord normalises a vendor record: question falls back to the
// title, category and status are lowercased, status defaults to open and the
// url to the public market page.
func MarketFromRecord(rec domain.MarketRecord) (domain.Market, error) {
	if strings.TrimSpace(rec.VendorID) == "" {
		return domain.Market{}, fmt.Errorf("market record without vendor id: %w", domain.ErrInvalidArgument)
	}

	m := domain.Market{
		UID:       MarketUID(rec.VendorID),
		Vendor:    domain.VendorPolymarket,
		Question:  rec.Question,
		Category:  strings.ToLower(strings.TrimSpace(rec.Category)),
		CreatedAt: time.UnixMilli(rec.CreatedAtMs).UTC(),
		URL:       rec.URL,
		Status:    domain.MarketStatus(strings.ToLower(strings.TrimSpace(rec.Status))),
	}
	if m.Question == "" {
		m.Question = rec.Title
	}
	if rec.CloseTimeMs != nil && *rec.CloseTimeMs != 0 {
		ct := time.UnixMilli(*rec.CloseTimeMs).UTC()
		m.CloseTime = &ct
	}
	if m.URL == "" {
		m.URL = "https://polymarket.com/market/" + rec.VendorID
	}
	if m.Status == "" {
		m.Status = domain.MarketStatusOpen
	}
	return m, nil
}

// TicksFromRecords maps one market's observations onto ticks.
func TicksFromRecords(marketUID string, recs []domain.TickRecord) []domain.PriceTick {
	ticks := make([]domain.PriceTick, 0, len(recs))
	for _, r := range recs {
		ticks = append(ticks, domain.PriceTick{
			MarketUID: marketUID,
			TS:        time.UnixMilli(r.TimestampMs).UTC(),
			Price:     r.Price,
			Volume24h: r.Volume,
			Liquidity: r.Liquidity,
		})
	}
	return ticks
}

// SyncMarkets upserts a batch of vendor markets and returns what was stored.
// Records without a vendor id are skipped.
func (s *IngestService) SyncMarkets(ctx context.Context, recs []domain.MarketRecord) ([]domain.Market, error) {
	markets := make([]domain.Market, 0, len(recs))
	seen := make(map[string]int, len(recs))
	for _, rec := range recs {
		m, err := MarketFromRecord(rec)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping market record", slog.String("error", err.Error()))
			continue
		}
		// A batch may not carry the same key twice; the later record wins.
		if i, dup := seen[m.UID]; dup {
			markets[i] = m
			continue
		}
		seen[m.UID] = len(markets)
		markets = append(markets, m)
	}
	if len(markets) == 0 {
		return nil, nil
	}

	if err := s.markets.UpsertBatch(ctx, markets); err != nil {
		return nil, fmt.Errorf("ingest_service: upsert markets: %w", err)
	}
	s.logger.InfoContext(ctx, "markets synced", slog.Int("count", len(markets)))
	return markets, nil
}

// SyncTicks upserts one market's observations and returns how many were
// written.
func (s *IngestService) SyncTicks(ctx context.Context, marketUID string, recs []domain.TickRecord) (int, error) {
	ticks := TicksFromRecords(marketUID, recs)
	if len(ticks) == 0 {
		return 0, nil
	}
	if err := s.ticks.UpsertBatch(ctx, ticks); err != nil {
		return 0, fmt.Errorf("ingest_service: upsert ticks %s: %w", marketUID, err)
	}
	return len(ticks), nil
}

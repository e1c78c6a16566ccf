package memory

import (
	"context"
	"sort"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// MarketStore is an in-memory domain.MarketStore.
type MarketStore struct {
	db *DB
}

// NewMarketStore creates a MarketStore over db.
func NewMarketStore(db *DB) *MarketStore {
	return &MarketStore{db: db}
}

// UpsertBatch inserts markets or overwrites their mutable fields. Vendor and
// created_at keep their first-seen values.
func (s *MarketStore) UpsertBatch(_ context.Context, markets []domain.Market) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, m := range markets {
		if m.UID == "" {
			return domain.ErrInvalidArgument
		}
		if prev, ok := s.db.markets[m.UID]; ok {
			m.Vendor = prev.Vendor
			m.CreatedAt = prev.CreatedAt
		}
		if m.CloseTime != nil {
			ct := *m.CloseTime
			m.CloseTime = &ct
		}
		s.db.markets[m.UID] = m
	}
	return nil
}

// GetByUID returns a market or domain.ErrNotFound.
func (s *MarketStore) GetByUID(_ context.Context, uid string) (domain.Market, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	m, ok := s.db.markets[uid]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

// ListOpen returns all open markets ordered by UID.
func (s *MarketStore) ListOpen(_ context.Context) ([]domain.Market, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []domain.Market
	for _, m := range s.db.markets {
		if m.Status == domain.MarketStatusOpen {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)

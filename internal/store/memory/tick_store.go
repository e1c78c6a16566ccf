package memory

import (
	"context"
	"sort"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// TickStore is an in-memory domain.TickStore.
type TickStore struct {
	db *DB
}

// NewTickStore creates a TickStore over db.
func NewTickStore(db *DB) *TickStore {
	return &TickStore{db: db}
}

// UpsertBatch stores ticks; the last write for a (market_uid, ts) pair wins.
func (s *TickStore) UpsertBatch(_ context.Context, ticks []domain.PriceTick) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, t := range ticks {
		if t.MarketUID == "" {
			return domain.ErrInvalidArgument
		}
		byTS, ok := s.db.ticks[t.MarketUID]
		if !ok {
			byTS = make(map[int64]domain.PriceTick)
			s.db.ticks[t.MarketUID] = byTS
		}
		t.TS = t.TS.UTC().Truncate(time.Microsecond)
		t.Price = copyFloat(t.Price)
		t.Volume24h = copyFloat(t.Volume24h)
		t.Liquidity = copyFloat(t.Liquidity)
		byTS[t.TS.UnixMicro()] = t
	}
	return nil
}

// ListByMarket returns a market's ticks with since <= ts <= until, oldest
// first.
func (s *TickStore) ListByMarket(_ context.Context, marketUID string, since, until time.Time) ([]domain.PriceTick, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []domain.PriceTick
	for _, t := range s.db.ticks[marketUID] {
		if t.TS.Before(since) || t.TS.After(until) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out, nil
}

// latestAtOrBefore returns the most recent tick of uid with ts <= at. The
// caller holds the lock.
func (db *DB) latestAtOrBefore(uid string, at time.Time) (domain.PriceTick, bool) {
	var best domain.PriceTick
	found := false
	for _, t := range db.ticks[uid] {
		if t.TS.After(at) {
			continue
		}
		if !found || t.TS.After(best.TS) {
			best, found = t, true
		}
	}
	return best, found
}

var _ domain.TickStore = (*TickStore)(nil)

package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// ViewStore is an in-memory domain.ViewStore.
type ViewStore struct {
	db *DB
}

// NewViewStore creates a ViewStore over db.
func NewViewStore(db *DB) *ViewStore {
	return &ViewStore{db: db}
}

// TopTrends returns the ranked rows of the latest run, best first.
func (s *ViewStore) TopTrends(_ context.Context, q domain.TopTrendsQuery) ([]domain.TopTrend, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var latest int64
	for k := range s.db.scores {
		if k.runAt > latest {
			latest = k.runAt
		}
	}

	out := []domain.TopTrend{}
	for k, sc := range s.db.scores {
		if k.runAt != latest || sc.Rank == nil {
			continue
		}
		m, ok := s.db.markets[sc.MarketUID]
		if !ok {
			continue
		}
		if q.Category != "" && m.Category != q.Category {
			continue
		}
		out = append(out, domain.TopTrend{
			Rank:         *sc.Rank,
			Market:       m.Question,
			TrendScore:   sc.Score,
			DVol24h:      copyFloat(sc.DVol24h),
			DPrice24h:    copyFloat(sc.DPrice24h),
			DLiq24h:      copyFloat(sc.DLiq24h),
			PriceNow:     copyFloat(sc.PriceNow),
			Volume24hNow: copyFloat(sc.Volume24hNow),
			LiquidityNow: copyFloat(sc.LiquidityNow),
			Category:     optString(m.Category),
			Vendor:       m.Vendor,
			URL:          m.URL,
			CreatedAt:    m.CreatedAt,
			MarketUID:    m.UID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if q.N > 0 && len(out) > q.N {
		out = out[:q.N]
	}
	return out, nil
}

// CategoryMomentum returns index rows dated within the last days days, newest
// first then by category.
func (s *ViewStore) CategoryMomentum(_ context.Context, days int) ([]domain.CategoryMomentum, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	from := truncateDay(s.db.now()).AddDate(0, 0, -days)
	out := []domain.CategoryMomentum{}
	for _, row := range s.db.momentum {
		if row.Date.Before(from) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// Timeline returns every signal of a market joined with its score, oldest
// run first.
func (s *ViewStore) Timeline(_ context.Context, marketUID string) ([]domain.TimelinePoint, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := []domain.TimelinePoint{}
	for k, sig := range s.db.signals {
		if k.uid != marketUID {
			continue
		}
		p := domain.TimelinePoint{
			Timestamp: sig.RunAt,
			DVol24h:   copyFloat(sig.DVol24h),
			DPrice24h: copyFloat(sig.DPrice24h),
			DLiq24h:   copyFloat(sig.DLiq24h),
			Freshness: sig.Freshness,
		}
		if sc, ok := s.db.scores[k]; ok {
			score := sc.Score
			p.TrendScore = &score
			p.Rank = copyInt(sc.Rank)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// SearchMarkets returns up to limit markets whose question contains q,
// case-insensitively, newest first.
func (s *ViewStore) SearchMarkets(_ context.Context, q string, limit int) ([]domain.MarketSummary, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	needle := strings.ToLower(q)
	out := []domain.MarketSummary{}
	for _, m := range s.db.markets {
		if !strings.Contains(strings.ToLower(m.Question), needle) {
			continue
		}
		out = append(out, domain.MarketSummary{
			MarketUID: m.UID,
			Vendor:    m.Vendor,
			Market:    m.Question,
			Category:  optString(m.Category),
			URL:       m.URL,
			CreatedAt: m.CreatedAt,
			Status:    string(m.Status),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].MarketUID < out[j].MarketUID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ domain.ViewStore = (*ViewStore)(nil)

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// TrendStore is an in-memory domain.TrendStore.
type TrendStore struct {
	db *DB
}

// NewTrendStore creates a TrendStore over db.
func NewTrendStore(db *DB) *TrendStore {
	return &TrendStore{db: db}
}

// LoadSignalInputs joins every open market with its latest tick at or before
// runAt and its latest tick at or before runAt-24h.
func (s *TrendStore) LoadSignalInputs(_ context.Context, runAt time.Time) ([]domain.SignalInput, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	baselineAt := runAt.Add(-24 * time.Hour)
	var out []domain.SignalInput
	for _, m := range s.db.markets {
		if m.Status != domain.MarketStatusOpen {
			continue
		}
		cur, ok := s.db.latestAtOrBefore(m.UID, runAt)
		if !ok {
			continue
		}
		in := domain.SignalInput{
			MarketUID: m.UID,
			Vendor:    m.Vendor,
			Category:  m.Category,
			CreatedAt: m.CreatedAt,
			Current:   cur,
		}
		if base, ok := s.db.latestAtOrBefore(m.UID, baselineAt); ok {
			in.Baseline = &base
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketUID < out[j].MarketUID })
	return out, nil
}

// SaveRun inserts signals whose key is new and upserts scores. An existing
// score keeps its rank; the ranking step reassigns it.
func (s *TrendStore) SaveRun(_ context.Context, signals []domain.TrendSignal, scores []domain.TrendScore) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, sig := range signals {
		k := key(sig.MarketUID, sig.RunAt)
		if _, exists := s.db.signals[k]; exists {
			continue
		}
		sig.DVol24h = copyFloat(sig.DVol24h)
		sig.DPrice24h = copyFloat(sig.DPrice24h)
		sig.DLiq24h = copyFloat(sig.DLiq24h)
		s.db.signals[k] = sig
	}

	for _, sc := range scores {
		k := key(sc.MarketUID, sc.RunAt)
		sc.Rank = nil
		if prev, exists := s.db.scores[k]; exists {
			sc.Rank = prev.Rank
		}
		s.db.scores[k] = sc
	}
	return nil
}

// AssignRanks ranks the scores of the most recent run_at, ties broken by
// market UID ascending.
func (s *TrendStore) AssignRanks(_ context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var latest int64
	found := false
	for k := range s.db.scores {
		if !found || k.runAt > latest {
			latest, found = k.runAt, true
		}
	}
	if !found {
		return 0, nil
	}

	var keys []runKey
	for k := range s.db.scores {
		if k.runAt == latest {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.db.scores[keys[i]], s.db.scores[keys[j]]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.MarketUID < b.MarketUID
	})
	for i, k := range keys {
		sc := s.db.scores[k]
		rank := i + 1
		sc.Rank = &rank
		s.db.scores[k] = sc
	}
	return int64(len(keys)), nil
}

// ListRunScores returns the scores of one run, ranked rows first by rank.
func (s *TrendStore) ListRunScores(_ context.Context, runAt time.Time) ([]domain.TrendScore, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	at := runAt.UnixMicro()
	var out []domain.TrendScore
	for k, sc := range s.db.scores {
		if k.runAt == at {
			sc.Rank = copyInt(sc.Rank)
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Rank, out[j].Rank
		switch {
		case ri != nil && rj != nil && *ri != *rj:
			return *ri < *rj
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		}
		return out[i].MarketUID < out[j].MarketUID
	})
	return out, nil
}

// Signal returns a stored signal, for inspection in tests.
func (s *TrendStore) Signal(uid string, runAt time.Time) (domain.TrendSignal, bool) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	sig, ok := s.db.signals[key(uid, runAt)]
	return sig, ok
}

var _ domain.TrendStore = (*TrendStore)(nil)

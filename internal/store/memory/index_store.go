package memory

import (
	"context"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// CategoryIndexStore is an in-memory domain.CategoryIndexStore.
type CategoryIndexStore struct {
	db *DB
}

// NewCategoryIndexStore creates a CategoryIndexStore over db.
func NewCategoryIndexStore(db *DB) *CategoryIndexStore {
	return &CategoryIndexStore{db: db}
}

type rollup struct {
	dvolSum, dpriceSum float64
	dvolN, dpriceN     int
	seen               bool
	scoreSum           float64
	scoreN             int
}

// RefreshDay recomputes the index rows of day's UTC date for every category
// scored that day.
func (s *CategoryIndexStore) RefreshDay(_ context.Context, day time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	dayStart := truncateDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekStart := dayStart.AddDate(0, 0, -6)

	acc := make(map[string]*rollup)
	for _, sc := range s.db.scores {
		if sc.Category == "" || sc.RunAt.Before(weekStart) || !sc.RunAt.Before(dayEnd) {
			continue
		}
		r, ok := acc[sc.Category]
		if !ok {
			r = &rollup{}
			acc[sc.Category] = r
		}
		r.scoreSum += sc.Score
		r.scoreN++
		if sc.RunAt.Before(dayStart) {
			continue
		}
		r.seen = true
		if sc.DVol24h != nil {
			r.dvolSum += *sc.DVol24h
			r.dvolN++
		}
		if sc.DPrice24h != nil {
			r.dpriceSum += *sc.DPrice24h
			r.dpriceN++
		}
	}

	var n int64
	for cat, r := range acc {
		if !r.seen {
			continue
		}
		row := domain.CategoryMomentum{Category: cat, Date: dayStart}
		m := r.scoreSum/float64(r.scoreN) - 50
		row.Momentum7d = &m
		if r.dvolN > 0 {
			v := r.dvolSum / float64(r.dvolN)
			row.AvgDVol24h = &v
		}
		if r.dpriceN > 0 {
			v := r.dpriceSum / float64(r.dpriceN)
			row.AvgDPrice24h = &v
		}
		s.db.momentum[indexKey{cat, dayStart.Format(time.DateOnly)}] = row
		n++
	}
	return n, nil
}

var _ domain.CategoryIndexStore = (*CategoryIndexStore)(nil)

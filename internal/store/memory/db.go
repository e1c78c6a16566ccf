// Package memory implements the domain store interfaces in process memory. It
// mirrors the semantics of the postgres stores (upsert keys, insert-or-ignore
// signals, latest-run ranking) and backs dry runs and tests.
package memory

import (
	"sync"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

type runKey struct {
	uid   string
	runAt int64 // UnixMicro
}

type indexKey struct {
	category string
	date     string // YYYY-MM-DD
}

// DB is the shared state behind the memory stores, the in-memory analogue of
// a connection pool.
type DB struct {
	mu       sync.RWMutex
	markets  map[string]domain.Market
	ticks    map[string]map[int64]domain.PriceTick // uid -> UnixMicro -> tick
	signals  map[runKey]domain.TrendSignal
	scores   map[runKey]domain.TrendScore
	momentum map[indexKey]domain.CategoryMomentum
	audit    []domain.AuditEntry
	now      func() time.Time
}

// NewDB creates an empty DB.
func NewDB() *DB {
	return &DB{
		markets:  make(map[string]domain.Market),
		ticks:    make(map[string]map[int64]domain.PriceTick),
		signals:  make(map[runKey]domain.TrendSignal),
		scores:   make(map[runKey]domain.TrendScore),
		momentum: make(map[indexKey]domain.CategoryMomentum),
		now:      time.Now,
	}
}

// WithClock overrides the clock used for "today" in date-window views.
func (db *DB) WithClock(now func() time.Time) *DB {
	db.now = now
	return db
}

// PutCategoryMomentum stores a momentum index row directly, standing in for an
// externally maintained index.
func (db *DB) PutCategoryMomentum(row domain.CategoryMomentum) {
	db.mu.Lock()
	defer db.mu.Unlock()
	row.Date = truncateDay(row.Date)
	db.momentum[indexKey{row.Category, row.Date.Format(time.DateOnly)}] = row
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func key(uid string, runAt time.Time) runKey {
	return runKey{uid: uid, runAt: runAt.UnixMicro()}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

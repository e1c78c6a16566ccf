package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/trendbot/internal/domain"
	"github.com/alanyoungcy/trendbot/internal/store/memory"
)

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMarketFromRecord(t *testing.T) {
	m, err := MarketFromRecord(domain.MarketRecord{
		VendorID:    "42",
		Title:       "Title fallback",
		Category:    " Politics ",
		CreatedAtMs: 1704067200000,
		CloseTimeMs: ptr(int64(1704153600000)),
		Status:      "CLOSED",
	})
	require.NoError(t, err)
	assert.Equal(t, "poly_42", m.UID)
	assert.Equal(t, domain.VendorPolymarket, m.Vendor)
	assert.Equal(t, "Title fallback", m.Question)
	assert.Equal(t, "politics", m.Category)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), m.CreatedAt)
	require.NotNil(t, m.CloseTime)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *m.CloseTime)
	assert.Equal(t, "https://polymarket.com/market/42", m.URL)
	assert.Equal(t, domain.MarketStatus("closed"), m.Status)

	m, err = MarketFromRecord(domain.MarketRecord{VendorID: "7", Question: "Q", Title: "T", URL: "https://x"})
	require.NoError(t, err)
	assert.Equal(t, "Q", m.Question)
	assert.Empty(t, m.Category)
	assert.Nil(t, m.CloseTime)
	assert.Equal(t, "https://x", m.URL)
	assert.Equal(t, domain.MarketStatusOpen, m.Status)
	assert.Equal(t, time.Unix(0, 0).UTC(), m.CreatedAt)

	_, err = MarketFromRecord(domain.MarketRecord{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestIngestService_Sync(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	markets, ticks := memory.NewMarketStore(db), memory.NewTickStore(db)
	svc := NewIngestService(markets, ticks, discardLogger())

	stored, err := svc.SyncMarkets(ctx, []domain.MarketRecord{
		{VendorID: "1", Question: "first"},
		{VendorID: ""},
		{VendorID: "1", Question: "second"},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)

	m, err := markets.GetByUID(ctx, "poly_1")
	require.NoError(t, err)
	assert.Equal(t, "second", m.Question)

	n, err := svc.SyncTicks(ctx, "poly_1", []domain.TickRecord{
		{TimestampMs: 1704067200000, Price: ptr(0.5), Volume: ptr(10.0)},
		{TimestampMs: 1704070800000, Price: ptr(0.6)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := ticks.ListByMarket(ctx, "poly_1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, *got[0].Volume24h)
	assert.Nil(t, got[1].Liquidity)

	n, err = svc.SyncTicks(ctx, "poly_1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type fakeCache struct {
	rows   map[domain.TopTrendsQuery][]domain.TopTrend
	getErr error
	sets   int
}

func (c *fakeCache) GetTopTrends(_ context.Context, q domain.TopTrendsQuery) ([]domain.TopTrend, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	rows, ok := c.rows[q]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rows, nil
}

func (c *fakeCache) SetTopTrends(_ context.Context, q domain.TopTrendsQuery, rows []domain.TopTrend) error {
	c.rows[q] = rows
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.rows = map[domain.TopTrendsQuery][]domain.TopTrend{}
	return nil
}

func TestTrendService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewTrendService(memory.NewViewStore(memory.NewDB()), nil, discardLogger())

	for _, n := range []int{0, -1, 101} {
		_, err := svc.TopTrends(ctx, domain.TopTrendsQuery{N: n})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "n=%d", n)
	}
	for _, d := range []int{0, 91} {
		_, err := svc.CategoryMomentum(ctx, d)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "days=%d", d)
	}
	_, err := svc.Timeline(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.SearchMarkets(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	rows, err := svc.TopTrends(ctx, domain.TopTrendsQuery{N: 100})
	require.NoError(t, err)
	assert.Empty(t, rows)
	momentum, err := svc.CategoryMomentum(ctx, 90)
	require.NoError(t, err)
	assert.Empty(t, momentum)
}

func TestTrendService_TopTrendsCache(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	require.NoError(t, memory.NewMarketStore(db).UpsertBatch(ctx, []domain.Market{
		{UID: "poly_1", Vendor: "polymarket", Question: "Q", Status: domain.MarketStatusOpen},
	}))
	trends := memory.NewTrendStore(db)
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, trends.SaveRun(ctx, nil, []domain.TrendScore{{MarketUID: "poly_1", RunAt: runAt, Score: 60}}))
	_, err := trends.AssignRanks(ctx)
	require.NoError(t, err)

	cache := &fakeCache{rows: map[domain.TopTrendsQuery][]domain.TopTrend{}}
	svc := NewTrendService(memory.NewViewStore(db), cache, discardLogger())
	q := domain.TopTrendsQuery{N: 10}

	rows, err := svc.TopTrends(ctx, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, cache.sets)

	cache.rows[q] = []domain.TopTrend{{MarketUID: "cached"}}
	rows, err = svc.TopTrends(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "cached", rows[0].MarketUID)

	cache.getErr = errors.New("redis down")
	rows, err = svc.TopTrends(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "poly_1", rows[0].MarketUID, "cache errors fall back to the store")
}

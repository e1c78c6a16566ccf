package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestMarketStore_Upsert(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore(NewDB())
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertBatch(ctx, []domain.Market{{
		UID: "poly_1", Vendor: "polymarket", Question: "Old?", CreatedAt: created, Status: domain.MarketStatusOpen,
	}}))
	require.NoError(t, s.UpsertBatch(ctx, []domain.Market{{
		UID: "poly_1", Vendor: "other", Question: "New?", Category: "crypto", CreatedAt: created.Add(time.Hour), Status: "closed",
	}}))

	m, err := s.GetByUID(ctx, "poly_1")
	require.NoError(t, err)
	assert.Equal(t, "New?", m.Question)
	assert.Equal(t, "crypto", m.Category)
	assert.Equal(t, domain.MarketStatus("closed"), m.Status)
	assert.Equal(t, "polymarket", m.Vendor)
	assert.Equal(t, created, m.CreatedAt)

	open, err := s.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = s.GetByUID(ctx, "poly_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.UpsertBatch(ctx, []domain.Market{{}}), domain.ErrInvalidArgument)
}

func TestTickStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewTickStore(NewDB())
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertBatch(ctx, []domain.PriceTick{
		{MarketUID: "poly_1", TS: ts, Price: ptr(0.4)},
		{MarketUID: "poly_1", TS: ts.Add(time.Hour), Price: ptr(0.5)},
	}))
	require.NoError(t, s.UpsertBatch(ctx, []domain.PriceTick{
		{MarketUID: "poly_1", TS: ts, Price: ptr(0.45)},
	}))

	ticks, err := s.ListByMarket(ctx, "poly_1", ts, ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, 0.45, *ticks[0].Price)
	assert.Equal(t, 0.5, *ticks[1].Price)
}

func TestTrendStore_LoadSignalInputs(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	markets, ticks, trends := NewMarketStore(db), NewTickStore(db), NewTrendStore(db)
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{
		{UID: "poly_1", Status: domain.MarketStatusOpen},
		{UID: "poly_2", Status: domain.MarketStatusOpen},
		{UID: "poly_3", Status: "resolved"},
		{UID: "poly_4", Status: domain.MarketStatusOpen},
	}))
	require.NoError(t, ticks.UpsertBatch(ctx, []domain.PriceTick{
		{MarketUID: "poly_1", TS: runAt.Add(-30 * time.Hour), Price: ptr(0.1)},
		{MarketUID: "poly_1", TS: runAt.Add(-24 * time.Hour), Price: ptr(0.2)},
		{MarketUID: "poly_1", TS: runAt.Add(-time.Hour), Price: ptr(0.3)},
		{MarketUID: "poly_1", TS: runAt.Add(time.Hour), Price: ptr(0.9)},
		{MarketUID: "poly_2", TS: runAt, Price: ptr(0.5)},
		{MarketUID: "poly_3", TS: runAt, Price: ptr(0.5)},
		{MarketUID: "poly_4", TS: runAt.Add(time.Minute), Price: ptr(0.5)},
	}))

	inputs, err := trends.LoadSignalInputs(ctx, runAt)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "poly_1", inputs[0].MarketUID)
	assert.Equal(t, 0.3, *inputs[0].Current.Price, "ticks after run_at are ignored")
	require.NotNil(t, inputs[0].Baseline)
	assert.Equal(t, 0.2, *inputs[0].Baseline.Price, "baseline boundary is inclusive")

	assert.Equal(t, "poly_2", inputs[1].MarketUID)
	assert.Nil(t, inputs[1].Baseline)
}

func TestTrendStore_SaveRunKeepsFirstSignal(t *testing.T) {
	ctx := context.Background()
	trends := NewTrendStore(NewDB())
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, trends.SaveRun(ctx,
		[]domain.TrendSignal{{MarketUID: "poly_1", RunAt: runAt, Freshness: 0.5}},
		[]domain.TrendScore{{MarketUID: "poly_1", RunAt: runAt, Score: 60}},
	))
	_, err := trends.AssignRanks(ctx)
	require.NoError(t, err)

	require.NoError(t, trends.SaveRun(ctx,
		[]domain.TrendSignal{{MarketUID: "poly_1", RunAt: runAt, Freshness: 0.9}},
		[]domain.TrendScore{{MarketUID: "poly_1", RunAt: runAt, Score: 70}},
	))

	sig, ok := trends.Signal("poly_1", runAt)
	require.True(t, ok)
	assert.Equal(t, 0.5, sig.Freshness)

	scores, err := trends.ListRunScores(ctx, runAt)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 70.0, scores[0].Score)
	require.NotNil(t, scores[0].Rank)
	assert.Equal(t, 1, *scores[0].Rank)
}

func TestTrendStore_AssignRanksTieBreak(t *testing.T) {
	ctx := context.Background()
	trends := NewTrendStore(NewDB())
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, trends.SaveRun(ctx, nil, []domain.TrendScore{
		{MarketUID: "poly_c", RunAt: runAt, Score: 80},
		{MarketUID: "poly_b", RunAt: runAt, Score: 80},
		{MarketUID: "poly_a", RunAt: runAt, Score: 40},
		{MarketUID: "poly_d", RunAt: runAt, Score: 90},
	}))
	n, err := trends.AssignRanks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	scores, err := trends.ListRunScores(ctx, runAt)
	require.NoError(t, err)
	var order []string
	for _, sc := range scores {
		order = append(order, sc.MarketUID)
	}
	assert.Equal(t, []string{"poly_d", "poly_b", "poly_c", "poly_a"}, order)

	empty, err := NewTrendStore(NewDB()).AssignRanks(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestViewStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	db := NewDB().WithClock(func() time.Time { return now })
	markets, trends, views := NewMarketStore(db), NewTrendStore(db), NewViewStore(db)
	runAt := now.Add(-time.Hour)

	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{
		{UID: "poly_1", Vendor: "polymarket", Question: "Will the 100% rate hold?", Category: "economy", CreatedAt: now.Add(-48 * time.Hour), Status: domain.MarketStatusOpen},
		{UID: "poly_2", Vendor: "polymarket", Question: "Will BTC hit 100k?", Category: "crypto", CreatedAt: now.Add(-2 * time.Hour), Status: domain.MarketStatusOpen},
		{UID: "poly_3", Vendor: "polymarket", Question: "Who wins?", CreatedAt: now.Add(-time.Hour), Status: domain.MarketStatusOpen},
	}))
	require.NoError(t, trends.SaveRun(ctx,
		[]domain.TrendSignal{
			{MarketUID: "poly_1", RunAt: runAt, Freshness: 0.5},
			{MarketUID: "poly_3", RunAt: runAt, Freshness: 0.9},
		},
		[]domain.TrendScore{
			{MarketUID: "poly_1", RunAt: runAt, Score: 70, Category: "economy"},
			{MarketUID: "poly_2", RunAt: runAt, Score: 80, Category: "crypto"},
		},
	))
	_, err := trends.AssignRanks(ctx)
	require.NoError(t, err)

	t.Run("top trends", func(t *testing.T) {
		top, err := views.TopTrends(ctx, domain.TopTrendsQuery{N: 1})
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "poly_2", top[0].MarketUID)
		assert.Equal(t, 1, top[0].Rank)

		top, err = views.TopTrends(ctx, domain.TopTrendsQuery{N: 10, Category: "economy"})
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, 2, top[0].Rank)

		top, err = views.TopTrends(ctx, domain.TopTrendsQuery{N: 10, Category: "nope"})
		require.NoError(t, err)
		assert.NotNil(t, top)
		assert.Empty(t, top)
	})

	t.Run("timeline", func(t *testing.T) {
		tl, err := views.Timeline(ctx, "poly_3")
		require.NoError(t, err)
		require.Len(t, tl, 1)
		assert.Nil(t, tl[0].TrendScore)

		tl, err = views.Timeline(ctx, "poly_missing")
		require.NoError(t, err)
		assert.Empty(t, tl)
	})

	t.Run("search", func(t *testing.T) {
		found, err := views.SearchMarkets(ctx, "will", 50)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "poly_2", found[0].MarketUID, "newest first")

		found, err = views.SearchMarkets(ctx, "100%", 50)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "poly_1", found[0].MarketUID)

		found, err = views.SearchMarkets(ctx, "will", 1)
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("category momentum", func(t *testing.T) {
		db.PutCategoryMomentum(domain.CategoryMomentum{Category: "old", Date: now.AddDate(0, 0, -30)})
		n, err := NewCategoryIndexStore(db).RefreshDay(ctx, runAt)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		rows, err := views.CategoryMomentum(ctx, 7)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "crypto", rows[0].Category)
		require.NotNil(t, rows[0].Momentum7d)
		assert.InDelta(t, 30.0, *rows[0].Momentum7d, 1e-9)
		assert.Nil(t, rows[0].AvgDVol24h)

		rows, err = views.CategoryMomentum(ctx, 60)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore(NewDB())
	require.NoError(t, s.Log(ctx, "a", nil))
	require.NoError(t, s.Log(ctx, "b", map[string]any{"k": 1}))

	entries, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Event)
	assert.Equal(t, int64(2), entries[0].ID)
}

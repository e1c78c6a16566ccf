package trend

import (
	"context"
	"encoding/json"
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

type recordingBus struct {
	channel string
	payload []byte
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.channel, b.payload = channel, payload
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type recordingArchiver struct {
	runAt  time.Time
	scores []domain.TrendScore
}

func (a *recordingArchiver) ArchiveRun(_ context.Context, runAt time.Time, scores []domain.TrendScore) (string, error) {
	a.runAt, a.scores = runAt, scores
	return "runs/test.jsonl", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	db      *memory.DB
	markets *memory.MarketStore
	ticks   *memory.TickStore
	trends  *memory.TrendStore
	views   *memory.ViewStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := memory.NewDB()
	return fixture{
		db:      db,
		markets: memory.NewMarketStore(db),
		ticks:   memory.NewTickStore(db),
		trends:  memory.NewTrendStore(db),
		views:   memory.NewViewStore(db),
	}
}

func (f fixture) seed(t *testing.T, runAt time.Time) {
	t.Helper()
	ctx := context.Background()
	created := runAt.Add(-24 * time.Hour)
	require.NoError(t, f.markets.UpsertBatch(ctx, []domain.Market{
		{UID: "poly_a", Vendor: "polymarket", Question: "Will A?", Category: "politics", CreatedAt: created, Status: domain.MarketStatusOpen},
		{UID: "poly_b", Vendor: "polymarket", Question: "Will B?", Category: "sports", CreatedAt: created, Status: domain.MarketStatusOpen},
		{UID: "poly_c", Vendor: "polymarket", Question: "Will C?", CreatedAt: created, Status: domain.MarketStatusOpen},
		{UID: "poly_closed", Vendor: "polymarket", Question: "Closed", CreatedAt: created, Status: "closed"},
	}))
	base := runAt.Add(-BaselineLag)
	require.NoError(t, f.ticks.UpsertBatch(ctx, []domain.PriceTick{
		{MarketUID: "poly_a", TS: base, Price: ptr(0.50), Volume24h: ptr(100.0), Liquidity: ptr(1000.0)},
		{MarketUID: "poly_a", TS: runAt, Price: ptr(0.60), Volume24h: ptr(300.0), Liquidity: ptr(1000.0)},
		// Same score as poly_a; the UID breaks the tie.
		{MarketUID: "poly_b", TS: base, Price: ptr(0.50), Volume24h: ptr(100.0), Liquidity: ptr(1000.0)},
		{MarketUID: "poly_b", TS: runAt.Add(-time.Minute), Price: ptr(0.60), Volume24h: ptr(300.0), Liquidity: ptr(1000.0)},
		// No baseline, thin book.
		{MarketUID: "poly_c", TS: runAt.Add(-time.Hour), Price: ptr(0.20), Volume24h: ptr(5.0), Liquidity: ptr(10.0)},
		{MarketUID: "poly_closed", TS: runAt, Price: ptr(0.9), Volume24h: ptr(1.0), Liquidity: ptr(1.0)},
	}))
}

func TestRunner_RanksLatestRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f.seed(t, runAt)

	res, err := NewRunner(f.trends, 0, discardLogger()).Run(ctx, runAt)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Markets)
	assert.Equal(t, 3, res.Scored)
	assert.Equal(t, int64(3), res.Ranked)
	assert.NotEmpty(t, res.RunID)

	scores, err := f.trends.ListRunScores(ctx, runAt)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for i, sc := range scores {
		require.NotNil(t, sc.Rank)
		assert.Equal(t, i+1, *sc.Rank)
	}
	assert.Equal(t, "poly_a", scores[0].MarketUID)
	assert.Equal(t, "poly_b", scores[1].MarketUID)
	assert.Equal(t, "poly_c", scores[2].MarketUID)
	assert.InDelta(t, 95.08, scores[0].Score, 0.01)
	assert.Equal(t, scores[0].Score, scores[1].Score)

	sig, ok := f.trends.Signal("poly_c", runAt)
	require.True(t, ok)
	assert.Nil(t, sig.DVol24h)
}

func TestRunner_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f.seed(t, runAt)
	r := NewRunner(f.trends, 0, discardLogger())

	_, err := r.Run(ctx, runAt)
	require.NoError(t, err)
	first, err := f.views.TopTrends(ctx, domain.TopTrendsQuery{N: 10})
	require.NoError(t, err)

	_, err = r.Run(ctx, runAt)
	require.NoError(t, err)
	second, err := f.views.TopTrends(ctx, domain.TopTrendsQuery{N: 10})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	timeline, err := f.views.Timeline(ctx, "poly_a")
	require.NoError(t, err)
	assert.Len(t, timeline, 1)
}

func TestRunner_LiquidityGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f.seed(t, runAt)

	res, err := NewRunner(f.trends, 500, discardLogger()).Run(ctx, runAt)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Signals)
	assert.Equal(t, 2, res.Scored)
	assert.Equal(t, 1, res.Excluded)

	timeline, err := f.views.Timeline(ctx, "poly_c")
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Nil(t, timeline[0].TrendScore)
	assert.Nil(t, timeline[0].Rank)
}

func TestRunner_LaterRunIsRankedEarlierKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f.seed(t, runAt)
	r := NewRunner(f.trends, 0, discardLogger())

	_, err := r.Run(ctx, runAt)
	require.NoError(t, err)
	later := runAt.Add(time.Hour)
	_, err = r.Run(ctx, later)
	require.NoError(t, err)

	top, err := f.views.TopTrends(ctx, domain.TopTrendsQuery{N: 10})
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 1, top[0].Rank)

	earlier, err := f.trends.ListRunScores(ctx, runAt)
	require.NoError(t, err)
	for _, sc := range earlier {
		assert.NotNil(t, sc.Rank, "earlier ranks are left as they were")
	}
}

func TestRunner_AfterRunHooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	runAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f.seed(t, runAt)

	bus := &recordingBus{}
	archiver := &recordingArchiver{}
	audit := memory.NewAuditStore(f.db)
	r := NewRunner(f.trends, 0, discardLogger()).
		WithBus(bus).
		WithArchiver(archiver).
		WithAudit(audit).
		WithCategoryIndex(memory.NewCategoryIndexStore(f.db)).
		WithClock(func() time.Time { return runAt })

	res, err := r.Run(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, runAt, res.RunAt)

	assert.Equal(t, domain.ChannelRuns, bus.channel)
	var published domain.RunResult
	require.NoError(t, json.Unmarshal(bus.payload, &published))
	assert.Equal(t, res.RunID, published.RunID)

	assert.Equal(t, runAt, archiver.runAt)
	assert.Len(t, archiver.scores, 3)

	entries, err := audit.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "trend.run", entries[0].Event)

	momentum, err := f.views.CategoryMomentum(ctx, 36500)
	require.NoError(t, err)
	assert.Len(t, momentum, 2)
}

type failingStore struct{ domain.TrendStore }

func (failingStore) LoadSignalInputs(context.Context, time.Time) ([]domain.SignalInput, error) {
	return nil, errors.New("boom")
}

func TestRunner_LoadError(t *testing.T) {
	_, err := NewRunner(failingStore{}, 0, discardLogger()).Run(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trend: load signal inputs")
}

package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

func TestFetchMarkets_SingleListPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": "123", "question": "Will it rain?", "category": "Weather", "createdAt": 1704067200000,
			 "endDate": "1704153600000", "url": "https://x/123", "status": "OPEN"},
			{"id": 456, "title": "Title only", "created_at": "2024-01-01T00:00:00Z", "endTime": 1704153600000},
			{"id": 789, "question": "Done", "closed": "true", "createdAt": "garbage"},
			{"question": "no id"}
		]`))
	}))
	defer srv.Close()

	recs, err := New(Config{MarketsURL: srv.URL}).FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)

	a := recs[0]
	assert.Equal(t, "123", a.VendorID)
	assert.Equal(t, "Will it rain?", a.Question)
	assert.Equal(t, "Weather", a.Category)
	assert.Equal(t, int64(1704067200000), a.CreatedAtMs)
	require.NotNil(t, a.CloseTimeMs)
	assert.Equal(t, int64(1704153600000), *a.CloseTimeMs)
	assert.Equal(t, "OPEN", a.Status)

	b := recs[1]
	assert.Equal(t, "456", b.VendorID)
	assert.Equal(t, "Title only", b.Title)
	assert.Equal(t, int64(1704067200000), b.CreatedAtMs)
	require.NotNil(t, b.CloseTimeMs)

	c := recs[2]
	assert.Equal(t, "closed", c.Status)
	assert.Zero(t, c.CreatedAtMs)
	assert.Nil(t, c.CloseTimeMs)
}

func TestFetchMarkets_WrappedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"markets": [{"id": "1", "question": "Q"}]}`))
	}))
	defer srv.Close()

	recs, err := New(Config{MarketsURL: srv.URL}).FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0].VendorID)
}

func TestFetchMarkets_Paginates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "yes", r.URL.Query().Get("active"))
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = w.Write([]byte(`[{"id": "1"}, {"id": "2"}]`))
		case "2":
			_, _ = w.Write([]byte(`[{"id": "3"}, {"id": "4"}]`))
		default:
			_, _ = w.Write([]byte(`[{"id": "5"}]`))
		}
	}))
	defer srv.Close()

	recs, err := New(Config{MarketsURL: srv.URL + "/markets?active=yes", PageSize: 2}).FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchMarkets_StopsWhenOffsetIgnored(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"id": "1"}, {"id": "2"}]`))
	}))
	defer srv.Close()

	recs, err := New(Config{MarketsURL: srv.URL, PageSize: 2}).FetchMarkets(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchMarkets_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(Config{MarketsURL: srv.URL}).FetchMarkets(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/abc/candles", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"t": 1704067200000, "close": 0.55, "volume": "1200.5", "liquidity": 3000},
			{"t": 1704070800000, "close": "n/a", "volume": null},
			{"close": 0.1}
		]`))
	}))
	defer srv.Close()

	cfg := Config{TicksURL: srv.URL + "/markets/{market_id}/candles", EnableLiquidity: true}
	recs, err := New(cfg).FetchCandles(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, int64(1704067200000), recs[0].TimestampMs)
	assert.Equal(t, 0.55, *recs[0].Price)
	assert.Equal(t, 1200.5, *recs[0].Volume)
	assert.Equal(t, 3000.0, *recs[0].Liquidity)

	assert.Nil(t, recs[1].Price)
	assert.Nil(t, recs[1].Volume)
	assert.Nil(t, recs[1].Liquidity)

	cfg.EnableLiquidity = false
	recs, err = New(cfg).FetchCandles(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, recs[0].Liquidity)
}

func TestFetchCandles_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(Config{TicksURL: srv.URL + "/{market_id}"}).FetchCandles(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFlexFloat(t *testing.T) {
	cases := map[string]*float64{
		`1.5`:     ptr(1.5),
		`"2.25"`:  ptr(2.25),
		`null`:    nil,
		`"abc"`:   nil,
		`"NaN"`:   nil,
		`"+Inf"`:  nil,
		`true`:    nil,
		`{"a":1}`: nil,
	}
	for in, want := range cases {
		var f flexFloat
		require.NoError(t, f.UnmarshalJSON([]byte(in)), in)
		assert.Equal(t, want, f.ptr(), in)
	}
}

func TestCheckHTTPStatus(t *testing.T) {
	assert.NoError(t, checkHTTPStatus(204, nil))
	assert.ErrorIs(t, checkHTTPStatus(403, nil), domain.ErrUnauthorized)
	err := checkHTTPStatus(502, []byte("bad gateway"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP "+strconv.Itoa(502))
}

func ptr[T any](v T) *T { return &v }

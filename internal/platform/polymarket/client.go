// Package polymarket is the vendor adapter for Polymarket: a paginated
// markets listing and per-market hourly candles, decoded leniently into
// domain ingestion records.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

const (
	defaultTimeout = 20 * time.Second
	// maxPages bounds pagination against endpoints that ignore offset.
	maxPages = 1000
)

// Config configures the vendor client.
type Config struct {
	MarketsURL string
	// TicksURL is a template; "{market_id}" is replaced by the vendor id.
	TicksURL          string
	PageSize          int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	EnableLiquidity   bool
}

// Client fetches markets and candles. Requests are paced by a token bucket
// shared across all calls on the client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client. A non-positive RequestsPerSecond disables pacing.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// FetchMarkets returns every market the listing endpoint reports. With a
// positive page size it walks limit/offset pages until a short page; otherwise
// it issues a single request.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	if c.cfg.PageSize <= 0 {
		return c.fetchMarketPage(ctx, c.cfg.MarketsURL)
	}

	var (
		out  []domain.MarketRecord
		seen = make(map[string]struct{})
	)
	for page := 0; page < maxPages; page++ {
		pageURL, err := withQuery(c.cfg.MarketsURL, map[string]string{
			"limit":  strconv.Itoa(c.cfg.PageSize),
			"offset": strconv.Itoa(page * c.cfg.PageSize),
		})
		if err != nil {
			return nil, fmt.Errorf("polymarket: markets url: %w", err)
		}
		records, err := c.fetchMarketPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		fresh := 0
		for _, r := range records {
			if _, dup := seen[r.VendorID]; dup {
				continue
			}
			seen[r.VendorID] = struct{}{}
			out = append(out, r)
			fresh++
		}
		if len(records) < c.cfg.PageSize || fresh == 0 {
			break
		}
	}
	return out, nil
}

func (c *Client) fetchMarketPage(ctx context.Context, pageURL string) ([]domain.MarketRecord, error) {
	body, err := c.doGet(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("polymarket: get markets: %w", err)
	}
	markets, err := decodeList[apiMarket](body, "markets")
	if err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w", err)
	}

	records := make([]domain.MarketRecord, 0, len(markets))
	for i := range markets {
		rec := markets[i].toRecord()
		if rec.VendorID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// FetchCandles returns the hourly candles of one market.
func (c *Client) FetchCandles(ctx context.Context, vendorID string) ([]domain.TickRecord, error) {
	candleURL := strings.ReplaceAll(c.cfg.TicksURL, "{market_id}", url.PathEscape(vendorID))
	body, err := c.doGet(ctx, candleURL)
	if err != nil {
		return nil, fmt.Errorf("polymarket: get candles %s: %w", vendorID, err)
	}
	candles, err := decodeList[apiCandle](body, "candles")
	if err != nil {
		return nil, fmt.Errorf("polymarket: decode candles %s: %w", vendorID, err)
	}

	records := make([]domain.TickRecord, 0, len(candles))
	for i := range candles {
		if !candles[i].T.ok {
			continue
		}
		records = append(records, candles[i].toRecord(c.cfg.EnableLiquidity))
	}
	return records, nil
}

// decodeList decodes either a bare JSON array or an object carrying the array
// under key. null decodes as an empty list.
func decodeList[T any](body []byte, key string) ([]T, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []T
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	raw, ok := wrapped[key]
	if !ok {
		return nil, nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func withQuery(raw string, params map[string]string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// doGet waits for the limiter and issues a GET.
func (c *Client) doGet(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, snippet)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, snippet)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, snippet)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, snippet)
	}
}

package domain

import "time"

// TopTrend is one row of the top-trends view for the latest run.
type TopTrend struct {
	Rank         int       `json:"rank"`
	Market       string    `json:"market"`
	TrendScore   float64   `json:"trend_score"`
	DVol24h      *float64  `json:"dvol_24h"`
	DPrice24h    *float64  `json:"dprice_24h"`
	DLiq24h      *float64  `json:"dliq_24h"`
	PriceNow     *float64  `json:"price_now"`
	Volume24hNow *float64  `json:"volume_24h_now"`
	LiquidityNow *float64  `json:"liquidity_now"`
	Category     *string   `json:"category"`
	Vendor       string    `json:"vendor"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
	MarketUID    string    `json:"market_uid"`
}

// CategoryMomentum is one row of the daily category momentum index.
type CategoryMomentum struct {
	Category     string    `json:"category"`
	Date         time.Time `json:"date"`
	Momentum7d   *float64  `json:"momentum_7d"`
	AvgDVol24h   *float64  `json:"avg_dvol_24h"`
	AvgDPrice24h *float64  `json:"avg_dprice_24h"`
}

// TimelinePoint is one run of a market's history. TrendScore and Rank are nil
// for runs in which the market was gated out of scoring.
type TimelinePoint struct {
	Timestamp  time.Time `json:"timestamp"`
	TrendScore *float64  `json:"trend_score"`
	Rank       *int      `json:"rank"`
	DVol24h    *float64  `json:"dvol_24h"`
	DPrice24h  *float64  `json:"dprice_24h"`
	DLiq24h    *float64  `json:"dliq_24h"`
	Freshness  float64   `json:"freshness"`
}

// MarketSummary is one row of a market search.
type MarketSummary struct {
	MarketUID string    `json:"market_uid"`
	Vendor    string    `json:"vendor"`
	Market    string    `json:"market"`
	Category  *string   `json:"category"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// TopTrendsQuery parameterises the top-trends view. An empty Category means
// no filter.
type TopTrendsQuery struct {
	N        int
	Category string
}

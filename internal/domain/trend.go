package domain

import "time"

// SignalInput is one row of the current/baseline join for a run: an open
// market, its latest tick at or before run_at, and its latest tick at or
// before run_at-24h when one exists.
type SignalInput struct {
	MarketUID string
	Vendor    string
	Category  string
	CreatedAt time.Time
	Current   PriceTick
	Baseline  *PriceTick
}

// TrendSignal holds the derived deltas for one market in one run. It is
// write-once per (MarketUID, RunAt).
type TrendSignal struct {
	MarketUID string    `json:"market_uid"`
	RunAt     time.Time `json:"run_at"`
	DVol24h   *float64  `json:"dvol_24h"`
	DPrice24h *float64  `json:"dprice_24h"`
	DLiq24h   *float64  `json:"dliq_24h"`
	Freshness float64   `json:"freshness"`
}

// TrendScore is the bounded score for one market in one run, with the
// denormalized snapshot the read views need. Rank is nil until the ranking
// step has run.
type TrendScore struct {
	MarketUID    string    `json:"market_uid"`
	RunAt        time.Time `json:"run_at"`
	Score        float64   `json:"trend_score"`
	Rank         *int      `json:"rank"`
	Category     string    `json:"category,omitempty"`
	Vendor       string    `json:"vendor"`
	DVol24h      *float64  `json:"dvol_24h"`
	DPrice24h    *float64  `json:"dprice_24h"`
	DLiq24h      *float64  `json:"dliq_24h"`
	PriceNow     *float64  `json:"price_now"`
	Volume24hNow *float64  `json:"volume_24h_now"`
	LiquidityNow *float64  `json:"liquidity_now"`
}

// RunResult summarises one signal+score run.
type RunResult struct {
	RunID    string    `json:"run_id"`
	RunAt    time.Time `json:"run_at"`
	Markets  int       `json:"markets"`
	Signals  int       `json:"signals"`
	Scored   int       `json:"scored"`
	Excluded int       `json:"excluded"`
	Ranked   int64     `json:"ranked"`
}

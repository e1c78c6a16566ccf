package domain

import "time"

// PriceTick is one timestamped observation for a market. Identity is
// (MarketUID, TS); re-ingesting the same pair overwrites the values.
type PriceTick struct {
	MarketUID string    `json:"market_uid"`
	TS        time.Time `json:"ts"`
	Price     *float64  `json:"price"`
	Volume24h *float64  `json:"volume_24h"`
	Liquidity *float64  `json:"liquidity"`
}

package domain

import "time"

// MarketStatus is the vendor-reported lifecycle state of a market, lowercased.
// Only StatusOpen markets take part in scoring runs; any other value is kept
// verbatim.
type MarketStatus string

const (
	MarketStatusOpen MarketStatus = "open"
)

// VendorPolymarket is the only vendor adapter currently wired.
const VendorPolymarket = "polymarket"

// Market is the registry entry for one prediction-market question.
type Market struct {
	UID       string       `json:"market_uid"`
	Vendor    string       `json:"vendor"`
	Question  string       `json:"question"`
	Category  string       `json:"category,omitempty"` // lowercase, empty when absent
	CreatedAt time.Time    `json:"created_at"`
	CloseTime *time.Time   `json:"close_time,omitempty"`
	URL       string       `json:"url"`
	Status    MarketStatus `json:"status"`
}

// MarketRecord is one market as handed over by the ingestion step. Timestamps
// are epoch milliseconds exactly as the vendor reports them.
type MarketRecord struct {
	VendorID    string
	Question    string
	Title       string
	Category    string
	CreatedAtMs int64
	CloseTimeMs *int64
	URL         string
	Status      string
}

// TickRecord is one hourly observation as handed over by the ingestion step.
// Missing or malformed numbers arrive as nil.
type TickRecord struct {
	TimestampMs int64
	Price       *float64
	Volume      *float64
	Liquidity   *float64
}

package polymarket

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// flexBool unmarshals from a JSON bool or a "true"/"false"/"1" string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = false
		return nil
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexString accepts a JSON string or number; vendor ids arrive as both.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// flexFloat is an optional number that accepts a JSON number or numeric
// string. Anything else, including NaN and infinities, decodes as absent
// rather than failing the whole payload.
type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = flexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = flexFloat{v: v, ok: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

// flexMillis is an optional timestamp given as epoch milliseconds (number or
// numeric string) or as an RFC 3339 string.
type flexMillis struct {
	ms int64
	ok bool
}

func (f *flexMillis) UnmarshalJSON(data []byte) error {
	*f = flexMillis{}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*f = flexMillis{ms: t.UnixMilli(), ok: true}
			return nil
		}
		data = []byte(s)
	}
	var num flexFloat
	_ = num.UnmarshalJSON(data)
	if num.ok {
		*f = flexMillis{ms: int64(num.v), ok: true}
	}
	return nil
}

// apiMarket is one market as returned by the markets endpoint. Field names
// cover both the camelCase and snake_case spellings seen in the wild.
type apiMarket struct {
	ID           flexString `json:"id"`
	Question     string     `json:"question"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	CreatedAt    flexMillis `json:"createdAt"`
	CreatedAtAlt flexMillis `json:"created_at"`
	EndDate      flexMillis `json:"endDate"`
	EndTime      flexMillis `json:"endTime"`
	URL          string     `json:"url"`
	Status       string     `json:"status"`
	Closed       flexBool   `json:"closed"`
}

// toRecord maps the DTO onto an ingestion record. Normalisation (uid prefix,
// defaults, lowercasing) is left to the ingest service.
func (m *apiMarket) toRecord() domain.MarketRecord {
	rec := domain.MarketRecord{
		VendorID: string(m.ID),
		Question: m.Question,
		Title:    m.Title,
		Category: m.Category,
		URL:      m.URL,
		Status:   m.Status,
	}
	switch {
	case m.CreatedAt.ok:
		rec.CreatedAtMs = m.CreatedAt.ms
	case m.CreatedAtAlt.ok:
		rec.CreatedAtMs = m.CreatedAtAlt.ms
	}
	switch {
	case m.EndDate.ok:
		ms := m.EndDate.ms
		rec.CloseTimeMs = &ms
	case m.EndTime.ok:
		ms := m.EndTime.ms
		rec.CloseTimeMs = &ms
	}
	if rec.Status == "" && bool(m.Closed) {
		rec.Status = "closed"
	}
	return rec
}

// apiCandle is one hourly candle.
type apiCandle struct {
	T         flexMillis `json:"t"`
	Close     flexFloat  `json:"close"`
	Volume    flexFloat  `json:"volume"`
	Liquidity flexFloat  `json:"liquidity"`
}

func (c *apiCandle) toRecord(withLiquidity bool) domain.TickRecord {
	rec := domain.TickRecord{
		TimestampMs: c.T.ms,
		Price:       c.Close.ptr(),
		Volume:      c.Volume.ptr(),
	}
	if withLiquidity {
		rec.Liquidity = c.Liquidity.ptr()
	}
	return rec
}

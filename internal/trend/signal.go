// Package trend turns joined tick snapshots into per-run trend signals, bounded
// trend scores, and ranks.
package trend

import (
	"math"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

const (
	// BaselineLag is how far back the baseline tick is looked up.
	BaselineLag = 24 * time.Hour

	// FreshnessDecayHours is the e-folding time of the freshness decay.
	FreshnessDecayHours = 72.0

	// MinFreshness is the floor of Freshness. exp underflows to zero for
	// markets older than about six years, and freshness stays in (0, 1].
	MinFreshness = math.SmallestNonzeroFloat64
)

// Freshness returns exp(-age/72h) for a market created at createdAt, with the
// age clamped at zero and the result floored at MinFreshness. A zero createdAt
// is an unknown creation time and, like the epoch default ingestion stores,
// gets the floor.
func Freshness(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return MinFreshness
	}
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Max(math.Exp(-ageHours/FreshnessDecayHours), MinFreshness)
}

// ComputeSignal derives the 24h deltas and freshness for one market. Deltas are
// nil whenever either side is missing, the ratio baseline is zero, or the
// result is not finite; absence is never turned into zero here.
func ComputeSignal(in domain.SignalInput, runAt time.Time) domain.TrendSignal {
	sig := domain.TrendSignal{
		MarketUID: in.MarketUID,
		RunAt:     runAt,
		Freshness: Freshness(in.CreatedAt, runAt),
	}
	if in.Baseline == nil {
		return sig
	}
	cur, base := in.Current, *in.Baseline
	sig.DVol24h = ratioDelta(cur.Volume24h, base.Volume24h)
	sig.DPrice24h = absDelta(cur.Price, base.Price)
	sig.DLiq24h = ratioDelta(cur.Liquidity, base.Liquidity)
	return sig
}

// ratioDelta returns cur/base - 1.
func ratioDelta(cur, base *float64) *float64 {
	if cur == nil || base == nil || *base == 0 {
		return nil
	}
	return finite(*cur / *base - 1)
}

// absDelta returns cur - base. Prices are probabilities, so the difference is
// absolute rather than relative.
func absDelta(cur, base *float64) *float64 {
	if cur == nil || base == nil {
		return nil
	}
	return finite(*cur - *base)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

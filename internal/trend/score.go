package trend

import (
	"math"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// Score weights. They sum to 1.
const (
	WeightVolume    = 0.4
	WeightPrice     = 0.3
	WeightLiquidity = 0.2
	WeightFreshness = 0.1
)

// Normalisation caps applied to the deltas before weighting.
const (
	VolumeDeltaMin    = -0.95
	VolumeDeltaMax    = 5.0
	PriceDeltaMin     = -0.25
	PriceDeltaMax     = 0.25
	LiquidityDeltaMin = -0.95
	LiquidityDeltaMax = 5.0
)

// Mapping from the weighted raw value onto the 0..100 score scale.
const (
	ScoreOffset = 1.0
	ScoreScale  = 50.0
	ScoreMin    = 0.0
	ScoreMax    = 100.0
)

// Normalized holds the clamped deltas that feed the score.
type Normalized struct {
	DVol      float64
	DPrice    float64
	DLiq      float64
	Freshness float64
}

// Normalize replaces absent or non-finite deltas with 0 and clamps each into
// its band.
func Normalize(sig domain.TrendSignal) Normalized {
	return Normalized{
		DVol:      clamp(orZero(sig.DVol24h), VolumeDeltaMin, VolumeDeltaMax),
		DPrice:    clamp(orZero(sig.DPrice24h), PriceDeltaMin, PriceDeltaMax),
		DLiq:      clamp(orZero(sig.DLiq24h), LiquidityDeltaMin, LiquidityDeltaMax),
		Freshness: zeroIfNotFinite(sig.Freshness),
	}
}

// Raw is the weighted sum before it is mapped onto the score scale.
func (n Normalized) Raw() float64 {
	return WeightVolume*n.DVol +
		WeightPrice*n.DPrice +
		WeightLiquidity*n.DLiq +
		WeightFreshness*n.Freshness
}

// Score returns the trend score of a signal, always within [0, 100].
func Score(sig domain.TrendSignal) float64 {
	raw := Normalize(sig).Raw()
	return clamp((raw+ScoreOffset)*ScoreScale, ScoreMin, ScoreMax)
}

// PassesLiquidityGate reports whether a market with the given current
// liquidity may be scored. A zero (or negative) floor disables the gate; with
// a positive floor, absent liquidity fails.
func PassesLiquidityGate(liquidity *float64, floor float64) bool {
	if floor <= 0 {
		return true
	}
	if liquidity == nil || math.IsNaN(*liquidity) {
		return false
	}
	return *liquidity >= floor
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return zeroIfNotFinite(*v)
}

func zeroIfNotFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

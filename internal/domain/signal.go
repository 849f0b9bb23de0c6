package domain

import "time"

// SignalSource indicates whether a signal came from the external scoring
// service or from the deterministic fallback heuristic.
type SignalSource string

const (
	SignalSourceScored   SignalSource = "scored"
	SignalSourceFallback SignalSource = "fallback"
)

// Signal is the scored assessment of a single opportunity. Strength and
// Confidence are always within [0,1]; an out-of-range score from the external
// service is rejected and replaced by the fallback.
type Signal struct {
	Strength   float64
	Confidence float64
	Source     SignalSource
	ComputedAt time.Time
}

// Valid reports whether both components are finite and within [0,1].
func (s Signal) Valid() bool {
	return inUnitRange(s.Strength) && inUnitRange(s.Confidence)
}

func inUnitRange(v float64) bool {
	// NaN fails both comparisons.
	return v >= 0 && v <= 1
}

// ScoreFeatures is the feature vector handed to the external scoring
// capability.
type ScoreFeatures struct {
	ProfitRatio float64 `json:"profit_ratio"`
	SizeRatio   float64 `json:"size_ratio"`
	Volatility  float64 `json:"volatility"`
	SpreadBps   float64 `json:"spread_bps"`
	Liquidity   float64 `json:"liquidity"`
}

// Package signal wraps the external scoring capability behind a strict value
// contract with a deterministic fallback, so the pipeline always produces a
// usable signal.
package signal

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// Fallback confidence bounds: the heuristic is never presented as more
// certain than 0.8 nor less than 0.3.
const (
	fallbackConfidenceFloor = 0.3
	fallbackConfidenceCeil  = 0.8
)

// VolatilitySource supplies realized volatility for the scored pair,
// typically the quote aggregator.
type VolatilitySource interface {
	Volatility(pair domain.Pair, window int) float64
}

// ScorerConfig holds scorer tunables.
type ScorerConfig struct {
	// Timeout bounds the external scoring call.
	Timeout time.Duration
	// VolatilityWindow is the number of history samples fed into features.
	VolatilityWindow int
	// MaxTradeSize normalizes the size ratio feature.
	MaxTradeSize float64
}

// Scorer produces a Signal for each opportunity. It calls the external
// scoring capability with a bounded timeout; on timeout, error, or an
// out-of-range result it substitutes the deterministic fallback heuristic.
type Scorer struct {
	remote domain.Scorer // may be nil: fallback only
	vol    VolatilitySource
	cfg    ScorerConfig
	logger *slog.Logger
}

// NewScorer creates a Scorer. remote may be nil, in which case every signal
// comes from the fallback heuristic.
func NewScorer(remote domain.Scorer, vol VolatilitySource, cfg ScorerConfig, logger *slog.Logger) *Scorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.VolatilityWindow <= 0 {
		cfg.VolatilityWindow = 60
	}
	return &Scorer{
		remote: remote,
		vol:    vol,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "signal_scorer")),
	}
}

// Score returns a valid Signal for the opportunity. It never fails: scoring
// unavailability degrades to the fallback, it is not an error.
func (s *Scorer) Score(ctx context.Context, opp domain.Opportunity) domain.Signal {
	if s.remote == nil {
		return s.fallback(opp)
	}

	features := domain.ScoreFeatures{
		ProfitRatio: opp.ProfitRatio(),
		SizeRatio:   s.sizeRatio(opp),
		Volatility:  s.volatility(opp.Pair),
		SpreadBps:   opp.ProfitRatio() * 10_000,
		Liquidity:   opp.Amount,
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	strength, confidence, err := s.remote.Score(sctx, features)
	if err != nil {
		s.logger.Warn("scoring degraded, using fallback",
			slog.String("opportunity_id", opp.ID),
			slog.String("error", err.Error()),
		)
		return s.fallback(opp)
	}

	sig := domain.Signal{
		Strength:   strength,
		Confidence: confidence,
		Source:     domain.SignalSourceScored,
		ComputedAt: time.Now().UTC(),
	}
	if !sig.Valid() {
		s.logger.Warn("scorer returned out-of-range values, using fallback",
			slog.String("opportunity_id", opp.ID),
			slog.Float64("strength", strength),
			slog.Float64("confidence", confidence),
		)
		return s.fallback(opp)
	}
	return sig
}

// fallback is the deterministic heuristic: strength is the mean of profit and
// size ratios clamped to [0,1]; confidence tracks strength within bounded
// certainty.
func (s *Scorer) fallback(opp domain.Opportunity) domain.Signal {
	strength := clamp((opp.ProfitRatio()+s.sizeRatio(opp))/2, 0, 1)
	return domain.Signal{
		Strength:   strength,
		Confidence: clamp(strength, fallbackConfidenceFloor, fallbackConfidenceCeil),
		Source:     domain.SignalSourceFallback,
		ComputedAt: time.Now().UTC(),
	}
}

func (s *Scorer) sizeRatio(opp domain.Opportunity) float64 {
	if s.cfg.MaxTradeSize <= 0 {
		return 0
	}
	return clamp(opp.Amount/s.cfg.MaxTradeSize, 0, 1)
}

func (s *Scorer) volatility(pair domain.Pair) float64 {
	if s.vol == nil {
		return 0
	}
	return s.vol.Volatility(pair, s.cfg.VolatilityWindow)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

// Package scanner detects cross-venue round-trip opportunities for tracked
// pairs by sampling a ladder of candidate trade sizes.
package scanner

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// minOutputGuardRatio sets the on-chain minimum-output guard relative to the
// estimated profit. Settling below this makes the settlement program revert.
const minOutputGuardRatio = 0.8

// Config holds the scanner tunables.
type Config struct {
	// MinTradeSize / MaxTradeSize bound the candidate ladder, in units of the
	// borrowed asset.
	MinTradeSize float64
	MaxTradeSize float64
	// LadderSteps is the number of geometric steps between min and max.
	LadderSteps int
	// MinProfit is the profit floor below which candidates are discarded.
	MinProfit float64
	// ProfitEpsilon: when two candidates' profits are within this range, the
	// smaller trade size wins to reduce slippage and exposure.
	ProfitEpsilon float64
	// QuoteTimeout bounds each venue quote call.
	QuoteTimeout time.Duration
}

// Scanner evaluates two-hop round trips across every ordered venue pair and
// returns the best net-profit candidate per scan.
type Scanner struct {
	venues []domain.VenueQuoter
	fees   domain.FeeEstimator
	cfg    Config
	logger *slog.Logger
}

// New creates a Scanner over the given venues.
func New(venues []domain.VenueQuoter, fees domain.FeeEstimator, cfg Config, logger *slog.Logger) *Scanner {
	if cfg.LadderSteps < 2 {
		cfg.LadderSteps = 5
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = 5 * time.Second
	}
	return &Scanner{
		venues: venues,
		fees:   fees,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// candidate is one evaluated (size, route) combination.
type candidate struct {
	amount    float64
	route     domain.Route
	netProfit float64
	fee       float64
}

// Scan evaluates the pair across all venue pairs and ladder sizes and returns
// the best opportunity, or nil when nothing clears the profit floor. A venue
// that times out is skipped for this cycle only; Scan itself never returns an
// error for venue failures.
func (s *Scanner) Scan(ctx context.Context, pair domain.Pair) *domain.Opportunity {
	var best *candidate

	for _, size := range s.ladder() {
		for _, buy := range s.venues {
			for _, sell := range s.venues {
				if buy.Name() == sell.Name() {
					continue
				}
				c, ok := s.evaluate(ctx, pair, size, buy, sell)
				if !ok {
					continue
				}
				best = better(best, c, s.cfg.ProfitEpsilon)
			}
		}
	}

	if best == nil || best.netProfit < s.cfg.MinProfit || best.netProfit <= 0 {
		return nil
	}

	opp := &domain.Opportunity{
		ID:                  uuid.New().String(),
		Pair:                pair,
		Asset:               pair.Quote,
		Amount:              best.amount,
		Route:               best.route,
		EstimatedProfit:     best.netProfit,
		MinAcceptableProfit: best.netProfit * minOutputGuardRatio,
		EstimatedFee:        best.fee,
		DiscoveredAt:        time.Now().UTC(),
	}

	s.logger.Info("opportunity detected",
		slog.String("pair", pair.String()),
		slog.String("buy_venue", opp.Route.BuyVenue),
		slog.String("sell_venue", opp.Route.SellVenue),
		slog.Float64("amount", opp.Amount),
		slog.Float64("net_profit", opp.EstimatedProfit),
	)
	return opp
}

// evaluate prices one round trip: amountIn of the quote asset buys the base
// token on buy, which is sold back on sell. Net profit is the final output
// minus principal and fees.
func (s *Scanner) evaluate(ctx context.Context, pair domain.Pair, amountIn float64, buy, sell domain.VenueQuoter) (*candidate, bool) {
	fwdCtx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	fwd, err := buy.Quote(fwdCtx, pair.Quote, pair.Base, amountIn)
	cancel()
	if err != nil {
		s.logger.Debug("forward quote failed",
			slog.String("venue", buy.Name()),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	revCtx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	rev, err := sell.Quote(revCtx, pair.Base, pair.Quote, fwd.AmountOut)
	cancel()
	if err != nil {
		s.logger.Debug("reverse quote failed",
			slog.String("venue", sell.Name()),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	fee, err := s.estimateFee(ctx, pair.Quote, amountIn)
	if err != nil {
		s.logger.Warn("fee estimate failed, skipping candidate",
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	net := rev.AmountOut - amountIn - fee
	if net <= 0 {
		return nil, false
	}

	return &candidate{
		amount:    amountIn,
		route:     domain.Route{BuyVenue: buy.Name(), SellVenue: sell.Name()},
		netProfit: net,
		fee:       fee,
	}, true
}

func (s *Scanner) estimateFee(ctx context.Context, asset string, amount float64) (float64, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	defer cancel()
	est, err := s.fees.Estimate(fctx, asset, amount)
	if err != nil {
		return 0, err
	}
	return est.Total(), nil
}

// ladder returns a geometric sequence of candidate sizes from min to max
// inclusive.
func (s *Scanner) ladder() []float64 {
	min, max := s.cfg.MinTradeSize, s.cfg.MaxTradeSize
	if min <= 0 || max < min {
		return nil
	}
	steps := s.cfg.LadderSteps
	if max == min {
		return []float64{min}
	}

	ratio := math.Pow(max/min, 1/float64(steps-1))
	sizes := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		sizes = append(sizes, min*math.Pow(ratio, float64(i)))
	}
	sizes[len(sizes)-1] = max // avoid float drift on the endpoint
	return sizes
}

// better picks the candidate with the higher net profit; within epsilon, the
// smaller trade size wins.
func better(cur, next *candidate, epsilon float64) *candidate {
	if cur == nil {
		return next
	}
	diff := next.netProfit - cur.netProfit
	if math.Abs(diff) <= epsilon {
		if next.amount < cur.amount {
			return next
		}
		return cur
	}
	if diff > 0 {
		return next
	}
	return cur
}

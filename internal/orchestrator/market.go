package orchestrator

import (
	"context"
	"log/slog"
	"math"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// VolatilitySource provides realized volatility from the retained price
// series.
type VolatilitySource interface {
	Volatility(pair domain.Pair, window int) float64
}

// Market adapts the quote aggregator and venue clients into the market
// context the risk gate consumes.
type Market struct {
	vol    VolatilitySource
	venues map[string]domain.VenueQuoter
	logger *slog.Logger
}

// NewMarket creates a Market over the given volatility source and venues.
func NewMarket(vol VolatilitySource, venues []domain.VenueQuoter, logger *slog.Logger) *Market {
	byName := make(map[string]domain.VenueQuoter, len(venues))
	for _, v := range venues {
		byName[v.Name()] = v
	}
	return &Market{
		vol:    vol,
		venues: byName,
		logger: logger.With(slog.String("component", "market_view")),
	}
}

// Volatility returns the realized volatility of the pair over the window.
func (m *Market) Volatility(pair domain.Pair, window int) float64 {
	return m.vol.Volatility(pair, window)
}

// RouteLiquidity returns the binding liquidity of the opportunity's route:
// the smaller of the buy and sell venue's liquidity for the pair. An
// unreachable venue counts as zero, which fails the gate's liquidity floor.
func (m *Market) RouteLiquidity(ctx context.Context, opp domain.Opportunity) float64 {
	min := math.Inf(1)
	for _, name := range []string{opp.Route.BuyVenue, opp.Route.SellVenue} {
		v, ok := m.venues[name]
		if !ok {
			return 0
		}
		liq, err := v.Liquidity(ctx, opp.Pair)
		if err != nil {
			m.logger.Debug("liquidity probe failed",
				slog.String("venue", name),
				slog.String("pair", opp.Pair.String()),
				slog.String("error", err.Error()),
			)
			return 0
		}
		if liq < min {
			min = liq
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

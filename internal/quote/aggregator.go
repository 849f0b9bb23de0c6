package quote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// probeAmount is the notional used to sample a venue's displayed price.
const probeAmount = 1.0

// AggregatorConfig holds tunables for the quote aggregator.
type AggregatorConfig struct {
	// VenueTimeout bounds each per-venue quote call during Refresh.
	VenueTimeout time.Duration
	// MaxQuoteAge is how long a quote stays usable before it is treated as
	// absent.
	MaxQuoteAge time.Duration
	// SeriesCapacity bounds each pair's price history.
	SeriesCapacity int
}

// Aggregator polls all configured venues for the tracked pairs, keeps the
// latest quote per (venue, pair), and maintains a bounded per-pair price
// series from which realized volatility is derived. It is safe for concurrent
// use.
type Aggregator struct {
	venues []domain.VenueQuoter
	pairs  []domain.Pair
	cfg    AggregatorConfig
	prices domain.PriceCache // optional, best effort
	logger *slog.Logger

	mu     sync.RWMutex
	latest map[string]domain.Quote // key: venue + "|" + pair
	hist   map[string]*series      // key: pair
}

// NewAggregator creates an Aggregator for the given venues and pairs. prices
// may be nil when no shared price cache is configured.
func NewAggregator(venues []domain.VenueQuoter, pairs []domain.Pair, cfg AggregatorConfig, prices domain.PriceCache, logger *slog.Logger) *Aggregator {
	if cfg.VenueTimeout <= 0 {
		cfg.VenueTimeout = 5 * time.Second
	}
	if cfg.MaxQuoteAge <= 0 {
		cfg.MaxQuoteAge = 30 * time.Second
	}
	return &Aggregator{
		venues: venues,
		pairs:  pairs,
		cfg:    cfg,
		prices: prices,
		logger: logger.With(slog.String("component", "quote_aggregator")),
		latest: make(map[string]domain.Quote),
		hist:   make(map[string]*series),
	}
}

func quoteKey(venue string, pair domain.Pair) string {
	return venue + "|" + pair.String()
}

// Refresh queries every venue for every tracked pair concurrently. A venue
// timeout or error leaves that venue's previous quote in place (it ages out
// via MaxQuoteAge) without affecting the other venues. Refresh never returns
// an error for per-venue failures.
func (a *Aggregator) Refresh(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)

	for _, v := range a.venues {
		for _, p := range a.pairs {
			g.Go(func() error {
				vctx, cancel := context.WithTimeout(ctx, a.cfg.VenueTimeout)
				defer cancel()

				q, err := v.Quote(vctx, p.Base, p.Quote, probeAmount)
				if err != nil {
					a.logger.Debug("venue quote failed",
						slog.String("venue", v.Name()),
						slog.String("pair", p.String()),
						slog.String("error", err.Error()),
					)
					return nil // per-venue failure is not fatal
				}
				a.record(ctx, v.Name(), p, q)
				return nil
			})
		}
	}
	_ = g.Wait()
}

// record stores the quote and appends to the pair's price series when the
// observation is strictly newer than the last retained sample.
func (a *Aggregator) record(ctx context.Context, venue string, pair domain.Pair, q domain.Quote) {
	a.mu.Lock()
	a.latest[quoteKey(venue, pair)] = q

	s, ok := a.hist[pair.String()]
	if !ok {
		s = newSeries(a.cfg.SeriesCapacity)
		a.hist[pair.String()] = s
	}
	appended := s.Append(q.Price(), q.ObservedAt)
	a.mu.Unlock()

	if appended && a.prices != nil {
		if err := a.prices.SetPrice(ctx, pair.String(), q.Price(), q.ObservedAt); err != nil {
			a.logger.Warn("price cache update failed",
				slog.String("pair", pair.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Latest returns the freshest quote for venue/pair, or false when no quote
// exists or the stored quote has aged past MaxQuoteAge.
func (a *Aggregator) Latest(venue string, pair domain.Pair) (domain.Quote, bool) {
	a.mu.RLock()
	q, ok := a.latest[quoteKey(venue, pair)]
	a.mu.RUnlock()
	if !ok || q.Age(time.Now()) > a.cfg.MaxQuoteAge {
		return domain.Quote{}, false
	}
	return q, true
}

// LatestAcross returns the freshest usable quote per venue for the pair.
func (a *Aggregator) LatestAcross(pair domain.Pair) []domain.Quote {
	now := time.Now()
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.Quote
	for _, v := range a.venues {
		if q, ok := a.latest[quoteKey(v.Name(), pair)]; ok && q.Age(now) <= a.cfg.MaxQuoteAge {
			out = append(out, q)
		}
	}
	return out
}

// Volatility returns the realized volatility of the pair over the last window
// samples, 0 when fewer than 2 samples exist.
func (a *Aggregator) Volatility(pair domain.Pair, window int) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.hist[pair.String()]
	if !ok {
		return 0
	}
	return s.Volatility(window)
}

// SampleCount returns the number of retained history samples for the pair.
func (a *Aggregator) SampleCount(pair domain.Pair) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.hist[pair.String()]
	if !ok {
		return 0
	}
	return s.Len()
}

// Observe feeds an externally pushed price sample (e.g. from a websocket
// feed) into the pair's series and latest-quote table.
func (a *Aggregator) Observe(ctx context.Context, venue string, pair domain.Pair, price float64, ts time.Time) {
	a.record(ctx, venue, pair, domain.Quote{
		Venue:      venue,
		TokenIn:    pair.Base,
		TokenOut:   pair.Quote,
		AmountIn:   probeAmount,
		AmountOut:  price * probeAmount,
		ObservedAt: ts,
	})
}

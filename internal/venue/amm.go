package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// PoolReserves are the reserves of a constant-product pool, oriented to the
// requested pair: Base is the reserve of pair.Base, Quote of pair.Quote.
type PoolReserves struct {
	Base  float64
	Quote float64
}

// ReserveSource fetches current pool reserves for a pair.
type ReserveSource interface {
	Reserves(ctx context.Context, pair domain.Pair) (PoolReserves, error)
}

// AMMVenue quotes trades against constant-product (x*y=k) pools. It caches
// reserves briefly so a scan cycle's ladder of candidate sizes does not hammer
// the reserve source.
type AMMVenue struct {
	name     string
	source   ReserveSource
	feeBps   float64
	cacheTTL time.Duration

	mu       sync.Mutex
	reserves map[string]PoolReserves
	fetched  map[string]time.Time
}

// NewAMMVenue creates an AMM venue with the given swap fee in basis points.
func NewAMMVenue(name string, source ReserveSource, feeBps float64) *AMMVenue {
	return &AMMVenue{
		name:     name,
		source:   source,
		feeBps:   feeBps,
		cacheTTL: 2 * time.Second,
		reserves: make(map[string]PoolReserves),
		fetched:  make(map[string]time.Time),
	}
}

// Name returns the venue identifier.
func (v *AMMVenue) Name() string {
	return v.name
}

// Quote computes the constant-product output for amountIn after the swap fee.
// tokenIn/tokenOut must be the two sides of a configured pool.
func (v *AMMVenue) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (domain.Quote, error) {
	if amountIn <= 0 {
		return domain.Quote{}, fmt.Errorf("venue/%s: non-positive amount %f", v.name, amountIn)
	}

	pair := domain.Pair{Base: tokenIn, Quote: tokenOut}
	res, err := v.poolFor(ctx, pair)
	if err != nil {
		return domain.Quote{}, err
	}
	if res.Base <= 0 || res.Quote <= 0 {
		return domain.Quote{}, fmt.Errorf("venue/%s: empty pool %s/%s: %w", v.name, tokenIn, tokenOut, domain.ErrVenueUnavailable)
	}

	effectiveIn := amountIn * (1 - v.feeBps/10_000)
	out := res.Quote * effectiveIn / (res.Base + effectiveIn)

	return domain.Quote{
		Venue:      v.name,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   amountIn,
		AmountOut:  out,
		Liquidity:  res.Quote,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// Liquidity returns the quote-side reserve of the pair's pool.
func (v *AMMVenue) Liquidity(ctx context.Context, pair domain.Pair) (float64, error) {
	res, err := v.poolFor(ctx, pair)
	if err != nil {
		return 0, err
	}
	return res.Quote, nil
}

func (v *AMMVenue) poolFor(ctx context.Context, pair domain.Pair) (PoolReserves, error) {
	key := pair.String()

	v.mu.Lock()
	res, ok := v.reserves[key]
	fresh := ok && time.Since(v.fetched[key]) < v.cacheTTL
	v.mu.Unlock()

	if fresh {
		return res, nil
	}

	res, err := v.source.Reserves(ctx, pair)
	if err != nil {
		return PoolReserves{}, fmt.Errorf("venue/%s: reserves %s: %w", v.name, pair, err)
	}

	v.mu.Lock()
	v.reserves[key] = res
	v.fetched[key] = time.Now()
	v.mu.Unlock()

	return res, nil
}

package scanner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// fakeVenue quotes at a fixed price in both directions: quote->base divides
// by price, base->quote multiplies.
type fakeVenue struct {
	name  string
	price float64 // quote tokens per base token
	err   error
}

func (v *fakeVenue) Name() string { return v.name }

func (v *fakeVenue) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (domain.Quote, error) {
	if v.err != nil {
		return domain.Quote{}, v.err
	}
	out := amountIn / v.price
	if tokenIn != "USDC" {
		out = amountIn * v.price
	}
	return domain.Quote{
		Venue:      v.name,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   amountIn,
		AmountOut:  out,
		ObservedAt: time.Now().UTC(),
	}, nil
}

func (v *fakeVenue) Liquidity(ctx context.Context, pair domain.Pair) (float64, error) {
	return 1_000_000, nil
}

// flatFees charges a fixed total per estimate.
type flatFees struct{ total float64 }

func (f *flatFees) Estimate(ctx context.Context, asset string, amount float64) (domain.FeeEstimate, error) {
	return domain.FeeEstimate{BaseFee: f.total}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		MinTradeSize:  100,
		MaxTradeSize:  1000,
		LadderSteps:   3,
		MinProfit:     0.1,
		ProfitEpsilon: 0.01,
		QuoteTimeout:  time.Second,
	}
}

var solUSDC = domain.Pair{Base: "SOL", Quote: "USDC"}

func TestScan_ProfitableRoundTrip(t *testing.T) {
	// Buy cheap on A (100 USDC/SOL), sell dear on B (102 USDC/SOL): a 1000
	// USDC round trip grosses 20 USDC before the 1 USDC fee.
	cheap := &fakeVenue{name: "a", price: 100}
	dear := &fakeVenue{name: "b", price: 102}
	s := New([]domain.VenueQuoter{cheap, dear}, &flatFees{total: 1}, testConfig(), testLogger())

	opp := s.Scan(context.Background(), solUSDC)

	require.NotNil(t, opp)
	assert.Equal(t, "a", opp.Route.BuyVenue)
	assert.Equal(t, "b", opp.Route.SellVenue)
	assert.Equal(t, "USDC", opp.Asset)
	assert.Equal(t, 1000.0, opp.Amount, "largest size wins when profit scales with size")
	assert.InDelta(t, 19.0, opp.EstimatedProfit, 1e-9)
	assert.InDelta(t, opp.EstimatedProfit*0.8, opp.MinAcceptableProfit, 1e-9)
	assert.LessOrEqual(t, opp.MinAcceptableProfit, opp.EstimatedProfit)
	assert.NotEmpty(t, opp.ID)
	assert.False(t, opp.DiscoveredAt.IsZero())
}

func TestScan_NoSpreadMeansNoOpportunity(t *testing.T) {
	a := &fakeVenue{name: "a", price: 100}
	b := &fakeVenue{name: "b", price: 100}
	s := New([]domain.VenueQuoter{a, b}, &flatFees{total: 1}, testConfig(), testLogger())

	assert.Nil(t, s.Scan(context.Background(), solUSDC))
}

func TestScan_ProfitBelowFloorIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.MinProfit = 25 // above the 19 achievable
	a := &fakeVenue{name: "a", price: 100}
	b := &fakeVenue{name: "b", price: 102}
	s := New([]domain.VenueQuoter{a, b}, &flatFees{total: 1}, cfg, testLogger())

	assert.Nil(t, s.Scan(context.Background(), solUSDC))
}

func TestScan_FailingVenueIsSkipped(t *testing.T) {
	a := &fakeVenue{name: "a", price: 100}
	b := &fakeVenue{name: "b", price: 102}
	broken := &fakeVenue{name: "c", err: domain.ErrVenueUnavailable}
	s := New([]domain.VenueQuoter{a, b, broken}, &flatFees{total: 1}, testConfig(), testLogger())

	opp := s.Scan(context.Background(), solUSDC)
	require.NotNil(t, opp)
	assert.Equal(t, "a", opp.Route.BuyVenue)
	assert.Equal(t, "b", opp.Route.SellVenue)
}

func TestScan_AllVenuesFailing(t *testing.T) {
	a := &fakeVenue{name: "a", err: domain.ErrVenueUnavailable}
	b := &fakeVenue{name: "b", err: domain.ErrVenueUnavailable}
	s := New([]domain.VenueQuoter{a, b}, &flatFees{total: 1}, testConfig(), testLogger())

	assert.Nil(t, s.Scan(context.Background(), solUSDC))
}

func TestLadder_GeometricBounds(t *testing.T) {
	cfg := testConfig()
	cfg.MinTradeSize = 100
	cfg.MaxTradeSize = 10_000
	cfg.LadderSteps = 5
	s := New(nil, &flatFees{}, cfg, testLogger())

	sizes := s.ladder()
	require.Len(t, sizes, 5)
	assert.Equal(t, 100.0, sizes[0])
	assert.Equal(t, 10_000.0, sizes[len(sizes)-1])
	for i := 1; i < len(sizes); i++ {
		assert.Greater(t, sizes[i], sizes[i-1])
	}
}

func TestBetter_EpsilonPrefersSmallerSize(t *testing.T) {
	big := &candidate{amount: 1000, netProfit: 10.005}
	small := &candidate{amount: 100, netProfit: 10.0}

	assert.Same(t, small, better(big, small, 0.01))
	assert.Same(t, big, better(small, big, 0.001))
}

func TestBetter_NilCurrent(t *testing.T) {
	c := &candidate{amount: 100, netProfit: 1}
	assert.Same(t, c, better(nil, c, 0.01))
}

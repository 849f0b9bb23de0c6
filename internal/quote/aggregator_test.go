package quote

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

type fixedVenue struct {
	name  string
	price float64
	err   error
}

func (v *fixedVenue) Name() string { return v.name }

func (v *fixedVenue) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (domain.Quote, error) {
	if v.err != nil {
		return domain.Quote{}, v.err
	}
	return domain.Quote{
		Venue:      v.name,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   amountIn,
		AmountOut:  amountIn / v.price,
		ObservedAt: time.Now().UTC(),
	}, nil
}

func (v *fixedVenue) Liquidity(ctx context.Context, pair domain.Pair) (float64, error) {
	return 1_000_000, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var solUSDC = domain.Pair{Base: "SOL", Quote: "USDC"}

func TestSeries_AppendRequiresStrictlyNewer(t *testing.T) {
	s := newSeries(10)
	ts := time.Now().UTC()

	require.True(t, s.Append(100, ts))
	assert.False(t, s.Append(101, ts), "equal timestamp is rejected")
	assert.False(t, s.Append(101, ts.Add(-time.Second)), "older timestamp is rejected")
	assert.True(t, s.Append(101, ts.Add(time.Second)))
	assert.Equal(t, 2, s.Len())
}

func TestSeries_EvictsOldest(t *testing.T) {
	s := newSeries(3)
	ts := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.True(t, s.Append(float64(100+i), ts.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, 3, s.Len())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 104.0, last.Price)
}

func TestSeries_Volatility(t *testing.T) {
	s := newSeries(100)
	ts := time.Now().UTC()

	// Constant price: zero volatility.
	for i := 0; i < 10; i++ {
		s.Append(100, ts.Add(time.Duration(i)*time.Second))
	}
	assert.Zero(t, s.Volatility(0))

	// Alternating returns produce nonzero volatility.
	s2 := newSeries(100)
	prices := []float64{100, 110, 99, 108, 97}
	for i, p := range prices {
		s2.Append(p, ts.Add(time.Duration(i)*time.Second))
	}
	assert.Greater(t, s2.Volatility(0), 0.0)

	// A window smaller than the history only considers the tail.
	assert.NotEqual(t, s2.Volatility(3), s2.Volatility(0))
}

func TestSeries_VolatilityNeedsTwoSamples(t *testing.T) {
	s := newSeries(10)
	assert.Zero(t, s.Volatility(0))
	s.Append(100, time.Now().UTC())
	assert.Zero(t, s.Volatility(0))
}

func TestAggregator_RefreshRecordsQuotes(t *testing.T) {
	a := NewAggregator(
		[]domain.VenueQuoter{
			&fixedVenue{name: "a", price: 100},
			&fixedVenue{name: "b", price: 102},
		},
		[]domain.Pair{solUSDC},
		AggregatorConfig{},
		nil,
		testLogger(),
	)

	a.Refresh(context.Background())

	qa, ok := a.Latest("a", solUSDC)
	require.True(t, ok)
	assert.Equal(t, "a", qa.Venue)

	across := a.LatestAcross(solUSDC)
	assert.Len(t, across, 2)
}

func TestAggregator_RefreshToleratesVenueFailure(t *testing.T) {
	a := NewAggregator(
		[]domain.VenueQuoter{
			&fixedVenue{name: "a", price: 100},
			&fixedVenue{name: "broken", err: domain.ErrVenueUnavailable},
		},
		[]domain.Pair{solUSDC},
		AggregatorConfig{},
		nil,
		testLogger(),
	)

	a.Refresh(context.Background())

	_, ok := a.Latest("a", solUSDC)
	assert.True(t, ok)
	_, ok = a.Latest("broken", solUSDC)
	assert.False(t, ok)
}

func TestAggregator_ObserveFeedsHistory(t *testing.T) {
	a := NewAggregator(nil, []domain.Pair{solUSDC}, AggregatorConfig{}, nil, testLogger())

	ts := time.Now().UTC()
	for i := 0; i < 5; i++ {
		a.Observe(context.Background(), "stream", solUSDC, 100+float64(i), ts.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 5, a.SampleCount(solUSDC))
	assert.Greater(t, a.Volatility(solUSDC, 0), 0.0)

	q, ok := a.Latest("stream", solUSDC)
	require.True(t, ok)
	assert.InDelta(t, 104.0, q.Price(), 1e-9)
}

func TestAggregator_LatestRespectsMaxQuoteAge(t *testing.T) {
	a := NewAggregator(nil, []domain.Pair{solUSDC}, AggregatorConfig{MaxQuoteAge: time.Second}, nil, testLogger())

	a.Observe(context.Background(), "stream", solUSDC, 100, time.Now().Add(-2*time.Second))

	_, ok := a.Latest("stream", solUSDC)
	assert.False(t, ok, "aged-out quote is treated as absent")
}

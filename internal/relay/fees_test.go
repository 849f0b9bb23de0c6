package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBaseFee struct {
	fee   float64
	err   error
	calls int
}

func (s *stubBaseFee) BaseFee(context.Context) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.fee, nil
}

func testFeeEstimator(source BaseFeeSource) *FeeEstimator {
	return NewFeeEstimator(source, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFeeEstimator_EstimateComponents(t *testing.T) {
	source := &stubBaseFee{fee: 0.002}
	e := testFeeEstimator(source)

	est, err := e.Estimate(context.Background(), "USDC", 10_000)
	require.NoError(t, err)

	assert.InDelta(t, 0.002, est.BaseFee, 1e-12)
	// default multiplier 1.5 prices the priority fee at half the base fee
	assert.InDelta(t, 0.001, est.PriorityFee, 1e-12)
	// flash-loan fee is 30 bps of the principal
	assert.InDelta(t, 30.0, est.FlashLoanFee, 1e-9)
	assert.InDelta(t, 30.003, est.Total(), 1e-9)
}

func TestFeeEstimator_BaseFeeIsCached(t *testing.T) {
	source := &stubBaseFee{fee: 0.002}
	e := testFeeEstimator(source)

	base := time.Now()
	e.now = func() time.Time { return base }

	_, err := e.Estimate(context.Background(), "USDC", 100)
	require.NoError(t, err)
	_, err = e.Estimate(context.Background(), "USDC", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "second estimate inside the TTL reuses the cache")

	e.now = func() time.Time { return base.Add(baseFeeTTL + time.Second) }
	_, err = e.Estimate(context.Background(), "USDC", 100)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestFeeEstimator_ReusesLastFeeWhenSourceFails(t *testing.T) {
	source := &stubBaseFee{fee: 0.002}
	e := testFeeEstimator(source)

	base := time.Now()
	e.now = func() time.Time { return base }
	_, err := e.Estimate(context.Background(), "USDC", 100)
	require.NoError(t, err)

	source.err = errors.New("relay down")
	e.now = func() time.Time { return base.Add(baseFeeTTL + time.Second) }

	est, err := e.Estimate(context.Background(), "USDC", 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.002, est.BaseFee, 1e-12)
}

func TestFeeEstimator_FailsWithoutAnyBaseFee(t *testing.T) {
	source := &stubBaseFee{err: errors.New("relay down")}
	e := testFeeEstimator(source)

	_, err := e.Estimate(context.Background(), "USDC", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimate fee for USDC")
}

func TestFeeEstimator_MultiplierAdaptsToOutcomes(t *testing.T) {
	e := testFeeEstimator(&stubBaseFee{fee: 0.002})
	require.InDelta(t, 1.5, e.Multiplier(), 1e-12)

	e.RecordOutcome(false)
	assert.InDelta(t, 1.5*1.10, e.Multiplier(), 1e-12)

	e.RecordOutcome(true)
	assert.InDelta(t, 1.5*1.10*0.95, e.Multiplier(), 1e-12)
}

func TestFeeEstimator_MultiplierStaysWithinBounds(t *testing.T) {
	e := testFeeEstimator(&stubBaseFee{fee: 0.002})

	for i := 0; i < 50; i++ {
		e.RecordOutcome(false)
	}
	assert.InDelta(t, maxPriorityMultiplier, e.Multiplier(), 1e-12)

	for i := 0; i < 100; i++ {
		e.RecordOutcome(true)
	}
	assert.InDelta(t, minPriorityMultiplier, e.Multiplier(), 1e-12)
}

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

const (
	// flashLoanFeeBps is the pool's flash-loan fee, 30 bps of the borrowed amount.
	flashLoanFeeBps = 30

	// baseFeeTTL bounds how long a fetched base fee is reused.
	baseFeeTTL = 30 * time.Second

	// Priority multiplier bounds and adaptation steps. The multiplier rises
	// when recent submissions miss their inclusion window and decays when
	// they land.
	defaultPriorityMultiplier = 1.5
	minPriorityMultiplier     = 1.0
	maxPriorityMultiplier     = 3.0
	missMultiplierStep        = 1.10
	landMultiplierStep        = 0.95
)

// BaseFeeSource reports the current network base fee in asset units.
type BaseFeeSource interface {
	BaseFee(ctx context.Context) (float64, error)
}

// BaseFee fetches the relay's view of the current base fee.
func (c *Client) BaseFee(ctx context.Context) (float64, error) {
	respBody, status, err := c.doRequest(ctx, http.MethodGet, "/fees", nil)
	if err != nil {
		return 0, fmt.Errorf("relay: base fee: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("relay: base fee: HTTP %d: %s", status, string(respBody))
	}

	var result struct {
		BaseFee float64 `json:"base_fee"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("relay: decode fee response: %w", err)
	}

	return result.BaseFee, nil
}

// FeeEstimator projects execution costs from the relay's base fee, an
// adaptive priority multiplier, and the fixed flash-loan fee. The multiplier
// adapts to recent inclusion outcomes: missed windows push it up 10%, landed
// bundles relax it 5%, always staying within [1.0, 3.0].
type FeeEstimator struct {
	source BaseFeeSource
	logger *slog.Logger

	mu         sync.Mutex
	multiplier float64
	baseFee    float64
	fetchedAt  time.Time

	now func() time.Time
}

var _ domain.FeeEstimator = (*FeeEstimator)(nil)

// NewFeeEstimator creates a FeeEstimator reading base fees from source.
func NewFeeEstimator(source BaseFeeSource, logger *slog.Logger) *FeeEstimator {
	return &FeeEstimator{
		source:     source,
		logger:     logger.With(slog.String("component", "fee_estimator")),
		multiplier: defaultPriorityMultiplier,
		now:        time.Now,
	}
}

// Estimate returns the projected fee for borrowing amount of asset. The base
// fee is cached for a short window; when the relay is unreachable and no
// cached value exists, the estimate fails.
func (e *FeeEstimator) Estimate(ctx context.Context, asset string, amount float64) (domain.FeeEstimate, error) {
	base, err := e.currentBaseFee(ctx)
	if err != nil {
		return domain.FeeEstimate{}, fmt.Errorf("relay: estimate fee for %s: %w", asset, err)
	}

	e.mu.Lock()
	mult := e.multiplier
	e.mu.Unlock()

	return domain.FeeEstimate{
		BaseFee:      base,
		PriorityFee:  base * (mult - 1.0),
		FlashLoanFee: amount * flashLoanFeeBps / 10_000,
	}, nil
}

// RecordOutcome adapts the priority multiplier to an inclusion outcome.
func (e *FeeEstimator) RecordOutcome(included bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if included {
		e.multiplier *= landMultiplierStep
	} else {
		e.multiplier *= missMultiplierStep
	}
	if e.multiplier < minPriorityMultiplier {
		e.multiplier = minPriorityMultiplier
	}
	if e.multiplier > maxPriorityMultiplier {
		e.multiplier = maxPriorityMultiplier
	}
}

// Multiplier returns the current priority multiplier.
func (e *FeeEstimator) Multiplier() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.multiplier
}

func (e *FeeEstimator) currentBaseFee(ctx context.Context) (float64, error) {
	e.mu.Lock()
	cached := e.baseFee
	fresh := !e.fetchedAt.IsZero() && e.now().Sub(e.fetchedAt) < baseFeeTTL
	e.mu.Unlock()

	if fresh {
		return cached, nil
	}

	fee, err := e.source.BaseFee(ctx)
	if err != nil {
		if !stale(cached) {
			// Reuse the last known fee rather than stalling the scan loop.
			e.logger.Warn("base fee fetch failed, reusing last value",
				slog.Float64("base_fee", cached),
				slog.String("error", err.Error()))
			return cached, nil
		}
		return 0, err
	}

	e.mu.Lock()
	e.baseFee = fee
	e.fetchedAt = e.now()
	e.mu.Unlock()

	return fee, nil
}

func stale(fee float64) bool {
	return fee <= 0
}

// Package executor turns approved opportunities into privately submitted
// flash-loan executions and reports their terminal outcome.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// PayloadSigner signs the canonical transaction-set payload before relay
// submission.
type PayloadSigner interface {
	Sign(payload []byte) ([]byte, error)
}

// Config holds execution tunables.
type Config struct {
	// TargetSlotOffset is how many slots ahead of the current slot the bundle
	// targets.
	TargetSlotOffset uint64
	// InclusionWaitSlots is how many subsequent slots are polled before the
	// attempt is declared not included.
	InclusionWaitSlots int
	// StatusTimeout bounds each individual status poll.
	StatusTimeout time.Duration
	// SlotInterval is the pacing between status polls (one slot's duration).
	SlotInterval time.Duration
}

// Coordinator submits approved opportunities through the private relay and
// polls for inclusion within a bounded slot window. It keeps no state beyond
// the in-flight registry needed to serialize executions per asset.
type Coordinator struct {
	relay    domain.Relay
	signer   PayloadSigner
	inflight *InFlight
	cfg      Config
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator with the given relay and signer.
func NewCoordinator(relay domain.Relay, signer PayloadSigner, inflight *InFlight, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.TargetSlotOffset == 0 {
		cfg.TargetSlotOffset = 2
	}
	if cfg.InclusionWaitSlots <= 0 {
		cfg.InclusionWaitSlots = 3
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 2 * time.Second
	}
	if cfg.SlotInterval <= 0 {
		cfg.SlotInterval = 400 * time.Millisecond
	}
	return &Coordinator{
		relay:    relay,
		signer:   signer,
		inflight: inflight,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "execution_coordinator")),
	}
}

// InFlightCount returns the number of executions awaiting inclusion.
func (c *Coordinator) InFlightCount() int {
	return c.inflight.Count()
}

// Execute runs one attempt end to end and always returns a terminal
// ExecutionResult; expected failures (relay rejection, non-inclusion, busy
// asset) are results, not errors. A failed attempt is never retried with the
// same parameters.
func (c *Coordinator) Execute(ctx context.Context, opp domain.Opportunity) domain.ExecutionResult {
	if !c.inflight.TryAcquire(opp.Asset) {
		c.logger.Warn("execution rejected, asset busy",
			slog.String("opportunity_id", opp.ID),
			slog.String("asset", opp.Asset),
		)
		return c.failure(opp, fmt.Sprintf("asset %s already in flight", opp.Asset))
	}
	defer c.inflight.Release(opp.Asset)

	set, err := c.buildTxSet(opp)
	if err != nil {
		return c.failure(opp, fmt.Sprintf("build transaction set: %v", err))
	}

	slot, err := c.relay.CurrentSlot(ctx)
	if err != nil {
		return c.failure(opp, fmt.Sprintf("current slot: %v", err))
	}
	targetSlot := slot + c.cfg.TargetSlotOffset

	submissionID, err := c.relay.Submit(ctx, set, targetSlot)
	if err != nil {
		c.logger.Warn("relay submission failed",
			slog.String("opportunity_id", opp.ID),
			slog.String("error", err.Error()),
		)
		return c.failure(opp, fmt.Sprintf("relay rejected: %v", err))
	}

	c.logger.Info("bundle submitted",
		slog.String("opportunity_id", opp.ID),
		slog.String("submission_id", submissionID),
		slog.Uint64("target_slot", targetSlot),
	)

	return c.awaitInclusion(ctx, opp, submissionID, targetSlot)
}

// buildTxSet encodes the approved route with its minimum-output guard and
// signs the canonical payload.
func (c *Coordinator) buildTxSet(opp domain.Opportunity) (domain.TxSet, error) {
	route := domain.RouteParams{
		BuyVenue:     opp.Route.BuyVenue,
		SellVenue:    opp.Route.SellVenue,
		TokenIn:      opp.Asset,
		TokenOut:     opp.Pair.Base,
		AmountIn:     opp.Amount,
		MinAmountOut: opp.Amount + opp.MinAcceptableProfit,
	}

	set := domain.TxSet{
		OpportunityID: opp.ID,
		Asset:         opp.Asset,
		Amount:        opp.Amount,
		Route:         route,
		MinProfit:     opp.MinAcceptableProfit,
	}

	payload, err := json.Marshal(set)
	if err != nil {
		return domain.TxSet{}, fmt.Errorf("marshal payload: %w", err)
	}
	set.Payload = payload

	sig, err := c.signer.Sign(payload)
	if err != nil {
		return domain.TxSet{}, fmt.Errorf("sign payload: %w", err)
	}
	set.Signature = sig
	return set, nil
}

// awaitInclusion polls the relay once per subsequent slot up to the wait
// window, then declares the attempt not included.
func (c *Coordinator) awaitInclusion(ctx context.Context, opp domain.Opportunity, submissionID string, targetSlot uint64) domain.ExecutionResult {
	for i := 1; i <= c.cfg.InclusionWaitSlots; i++ {
		select {
		case <-ctx.Done():
			return c.failure(opp, "cancelled while awaiting inclusion")
		case <-time.After(c.cfg.SlotInterval):
		}

		pollCtx, cancel := context.WithTimeout(ctx, c.cfg.StatusTimeout)
		status, err := c.relay.Status(pollCtx, submissionID, targetSlot+uint64(i))
		cancel()
		if err != nil {
			c.logger.Debug("status poll failed",
				slog.String("submission_id", submissionID),
				slog.Int("attempt", i),
				slog.String("error", err.Error()),
			)
			continue
		}

		if status.State == domain.SubmissionIncluded {
			c.logger.Info("bundle included",
				slog.String("opportunity_id", opp.ID),
				slog.String("settlement_ref", status.SettlementRef),
				slog.Float64("observed_profit", status.ObservedProfit),
			)
			return domain.ExecutionResult{
				OpportunityID:  opp.ID,
				Asset:          opp.Asset,
				Success:        true,
				SettlementRef:  status.SettlementRef,
				ObservedProfit: status.ObservedProfit,
				CompletedAt:    time.Now().UTC(),
			}
		}
		// pending and absent both mean "keep waiting" until the window runs out.
	}

	c.logger.Warn("bundle not included within window",
		slog.String("opportunity_id", opp.ID),
		slog.String("submission_id", submissionID),
		slog.Int("wait_slots", c.cfg.InclusionWaitSlots),
	)
	return c.failure(opp, "not included")
}

func (c *Coordinator) failure(opp domain.Opportunity, reason string) domain.ExecutionResult {
	return domain.ExecutionResult{
		OpportunityID: opp.ID,
		Asset:         opp.Asset,
		Success:       false,
		Reason:        reason,
		CompletedAt:   time.Now().UTC(),
	}
}

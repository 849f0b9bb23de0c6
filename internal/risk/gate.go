// Package risk implements the stateful multi-criterion gate that approves or
// denies opportunities and owns the process-wide risk accounting state.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// dailyWindow is the rolling accounting window for daily counters.
const dailyWindow = 24 * time.Hour

// Config holds the risk limits. All monetary values are in units of the
// borrowed asset.
type Config struct {
	MinProfit               float64       // minimum estimated profit per trade
	MaxDailyLoss            float64       // daily loss ceiling
	MaxTradeLoss            float64       // per-trade worst-case loss ceiling
	MaxSlippageBps          float64       // estimated price impact ceiling
	MaxFee                  float64       // gas/fee ceiling per trade
	MaxLiquidityUtilization float64       // trade size vs venue liquidity, e.g. 0.9
	Cooldown                time.Duration // minimum gap between trades
	MaxConsecutiveFailures  int           // auto-pause threshold
	VolatilityCeiling       float64       // realized volatility ceiling
	VolatilityWindow        int           // samples of the retained series to use; 0 means all
	LiquidityFloor          float64       // absolute minimum venue liquidity
	ApprovalThreshold       float64       // riskScore must stay below this
	ConfidenceFloor         float64       // minimum signal confidence
	AutoResumeAfter         time.Duration // 0 disables auto-resume of auto-pauses
}

// MarketView supplies the market context the checklist needs: realized
// volatility and a liquidity proxy for the opportunity's route.
type MarketView interface {
	Volatility(pair domain.Pair, window int) float64
	RouteLiquidity(ctx context.Context, opp domain.Opportunity) float64
}

// Gate evaluates opportunities against a weighted checklist and tracks
// cumulative risk state. All state lives behind one mutex; Gate is the only
// writer of RiskState in the process.
type Gate struct {
	cfg    Config
	market MarketView
	logger *slog.Logger

	mu        sync.Mutex
	state     domain.RiskState
	pausedAt  time.Time
	autoPause bool

	now func() time.Time // injectable for tests
}

// NewGate creates a Gate in the Active state with zeroed counters.
func NewGate(cfg Config, market MarketView, logger *slog.Logger) *Gate {
	if cfg.ApprovalThreshold <= 0 {
		cfg.ApprovalThreshold = 0.7
	}
	if cfg.MaxLiquidityUtilization <= 0 {
		cfg.MaxLiquidityUtilization = 0.9
	}
	g := &Gate{
		cfg:    cfg,
		market: market,
		logger: logger.With(slog.String("component", "risk_gate")),
		now:    time.Now,
	}
	g.state.WindowStartedAt = g.now().UTC()
	return g
}

// check is one entry of the weighted checklist.
type check struct {
	name   string
	weight float64
	passed bool
}

// Evaluate runs the full checklist for the opportunity. It is deterministic
// for identical state and inputs, and mutates nothing except the lazy daily
// window reset.
func (g *Gate) Evaluate(ctx context.Context, opp domain.Opportunity, sig domain.Signal) domain.RiskDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	g.resetWindowLocked(now)
	g.maybeAutoResumeLocked(now)

	if g.state.IsPaused {
		return domain.RiskDecision{
			Approved:  false,
			RiskScore: 1,
			Reason:    fmt.Sprintf("paused: %s", g.state.PauseReason),
		}
	}

	liquidity := g.market.RouteLiquidity(ctx, opp)
	volatility := g.market.Volatility(opp.Pair, g.cfg.VolatilityWindow)

	slippageBps := 0.0
	utilization := 1.0
	if liquidity > 0 {
		slippageBps = opp.Amount / liquidity * 10_000
		utilization = opp.Amount / liquidity
	}
	worstCaseLoss := opp.EstimatedFee + opp.Amount*slippageBps/10_000

	checks := []check{
		{"min_profit", 0.15, opp.EstimatedProfit >= g.cfg.MinProfit},
		{"daily_loss_ceiling", 0.15, g.state.DailyLoss+worstCaseLoss <= g.cfg.MaxDailyLoss},
		{"trade_loss_ceiling", 0.10, worstCaseLoss <= g.cfg.MaxTradeLoss},
		{"slippage_ceiling", 0.10, slippageBps <= g.cfg.MaxSlippageBps},
		{"fee_ceiling", 0.10, opp.EstimatedFee <= g.cfg.MaxFee},
		{"liquidity_utilization", 0.10, utilization <= g.cfg.MaxLiquidityUtilization},
		{"cooldown_elapsed", 0.05, g.state.LastTradeAt.IsZero() || now.Sub(g.state.LastTradeAt) >= g.cfg.Cooldown},
		{"consecutive_failures", 0.15, g.state.ConsecutiveFailures < g.cfg.MaxConsecutiveFailures},
		{"volatility_ceiling", 0.05, volatility <= g.cfg.VolatilityCeiling},
		{"liquidity_floor", 0.05, liquidity >= g.cfg.LiquidityFloor},
	}

	var totalWeight, failedWeight float64
	var failed []string
	for _, c := range checks {
		totalWeight += c.weight
		if !c.passed {
			failedWeight += c.weight
			failed = append(failed, c.name)
		}
	}
	riskScore := failedWeight / totalWeight

	switch {
	case len(failed) > 0:
		return domain.RiskDecision{
			Approved:  false,
			RiskScore: riskScore,
			Reason:    "failed checks: " + strings.Join(failed, ", "),
		}
	case riskScore >= g.cfg.ApprovalThreshold:
		return domain.RiskDecision{
			Approved:  false,
			RiskScore: riskScore,
			Reason:    fmt.Sprintf("risk score %.2f above threshold %.2f", riskScore, g.cfg.ApprovalThreshold),
		}
	case sig.Confidence < g.cfg.ConfidenceFloor:
		return domain.RiskDecision{
			Approved:  false,
			RiskScore: riskScore,
			Reason:    fmt.Sprintf("signal confidence %.2f below floor %.2f", sig.Confidence, g.cfg.ConfidenceFloor),
		}
	default:
		return domain.RiskDecision{Approved: true, RiskScore: riskScore, Reason: "approved"}
	}
}

// RecordOutcome feeds an execution result back into the risk accounting. A
// success resets the failure streak and books observed profit; a failure
// books the estimated fee as the realized loss (the flash loan itself reverts,
// only the fee is burned) and may trip the auto-pause.
func (g *Gate) RecordOutcome(opp domain.Opportunity, res domain.ExecutionResult) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	g.resetWindowLocked(now)

	g.state.TotalTrades++
	g.state.LastTradeAt = now

	if res.Success {
		g.state.SuccessfulTrades++
		g.state.ConsecutiveFailures = 0
		profit := res.ObservedProfit
		if profit == 0 {
			profit = opp.EstimatedProfit
		}
		g.state.DailyProfit += profit
		return
	}

	g.state.ConsecutiveFailures++
	g.state.DailyLoss += opp.EstimatedFee

	if g.cfg.MaxConsecutiveFailures > 0 && g.state.ConsecutiveFailures >= g.cfg.MaxConsecutiveFailures {
		reason := fmt.Sprintf("%d consecutive failures", g.state.ConsecutiveFailures)
		g.pauseLocked(reason, true, now)
	}
}

// Pause halts approvals until Resume. Operator pauses are never auto-resumed.
func (g *Gate) Pause(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pauseLocked(reason, false, g.now().UTC())
}

// Resume clears the paused state and the failure streak.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.state.IsPaused {
		return
	}
	g.state.IsPaused = false
	g.state.PauseReason = ""
	g.state.ConsecutiveFailures = 0
	g.autoPause = false
	g.logger.Info("risk gate resumed")
}

// Snapshot returns a copy of the current risk state.
func (g *Gate) Snapshot() domain.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetWindowLocked(g.now().UTC())
	return g.state
}

func (g *Gate) pauseLocked(reason string, auto bool, now time.Time) {
	if g.state.IsPaused {
		return
	}
	g.state.IsPaused = true
	g.state.PauseReason = reason
	g.autoPause = auto
	g.pausedAt = now
	g.logger.Warn("risk gate paused",
		slog.String("reason", reason),
		slog.Bool("auto", auto),
	)
}

// maybeAutoResumeLocked lifts an automatic pause once the configured cooldown
// has elapsed. Operator pauses always require an explicit Resume.
func (g *Gate) maybeAutoResumeLocked(now time.Time) {
	if !g.state.IsPaused || !g.autoPause || g.cfg.AutoResumeAfter <= 0 {
		return
	}
	if now.Sub(g.pausedAt) < g.cfg.AutoResumeAfter {
		return
	}
	g.state.IsPaused = false
	g.state.PauseReason = ""
	g.state.ConsecutiveFailures = 0
	g.autoPause = false
	g.logger.Info("risk gate auto-resumed after cooldown")
}

// resetWindowLocked zeroes the daily counters once the 24h window elapses.
func (g *Gate) resetWindowLocked(now time.Time) {
	if now.Sub(g.state.WindowStartedAt) < dailyWindow {
		return
	}
	g.logger.Info("daily risk window reset",
		slog.Float64("daily_profit", g.state.DailyProfit),
		slog.Float64("daily_loss", g.state.DailyLoss),
	)
	g.state.DailyProfit = 0
	g.state.DailyLoss = 0
	g.state.WindowStartedAt = now
}

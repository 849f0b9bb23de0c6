package domain

import "time"

// RiskState is the process-wide risk accounting record. It is owned
// exclusively by the risk gate; other components only ever see copies.
type RiskState struct {
	DailyLoss           float64
	DailyProfit         float64
	ConsecutiveFailures int
	LastTradeAt         time.Time
	TotalTrades         int64
	SuccessfulTrades    int64
	IsPaused            bool
	PauseReason         string
	WindowStartedAt     time.Time
}

// RiskDecision is the outcome of evaluating one opportunity against the risk
// checklist. RiskScore is the weighted share of failed checks in [0,1].
type RiskDecision struct {
	Approved  bool
	RiskScore float64
	Reason    string
}

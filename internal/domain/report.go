package domain

import "time"

// DailySummary is the periodic structured report emitted to logging and
// alerting collaborators.
type DailySummary struct {
	Date        string  `json:"date"` // YYYY-MM-DD
	Executions  int64   `json:"executions"`
	Successes   int64   `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
	TotalProfit float64 `json:"total_profit"`
}

// BotStatus is an aggregate snapshot of the orchestrator's state.
type BotStatus struct {
	Running              bool
	Mode                 string
	UptimeSeconds        int64
	TotalExecutions      int64
	SuccessfulExecutions int64
	TotalProfit          float64
	InFlight             int
	Risk                 RiskState
	LastReportAt         time.Time
}

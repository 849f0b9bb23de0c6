package handler

import (
	"net/http"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// StatusProvider supplies the aggregate bot state for the status endpoint.
type StatusProvider interface {
	Status() domain.BotStatus
}

// StatusHandler serves the bot status snapshot.
type StatusHandler struct {
	provider StatusProvider
}

// NewStatusHandler creates a StatusHandler over the given provider.
func NewStatusHandler(provider StatusProvider) *StatusHandler {
	return &StatusHandler{provider: provider}
}

// GetStatus responds with the current bot status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.provider.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":               st.Running,
		"mode":                  st.Mode,
		"uptime_seconds":        st.UptimeSeconds,
		"total_executions":      st.TotalExecutions,
		"successful_executions": st.SuccessfulExecutions,
		"total_profit":          st.TotalProfit,
		"in_flight":             st.InFlight,
		"risk": map[string]any{
			"is_paused":            st.Risk.IsPaused,
			"pause_reason":         st.Risk.PauseReason,
			"daily_loss":           st.Risk.DailyLoss,
			"daily_profit":         st.Risk.DailyProfit,
			"consecutive_failures": st.Risk.ConsecutiveFailures,
			"total_trades":         st.Risk.TotalTrades,
			"successful_trades":    st.Risk.SuccessfulTrades,
		},
		"last_report_at": st.LastReportAt,
	})
}

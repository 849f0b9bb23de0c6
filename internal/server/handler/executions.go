package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// ExecutionLister supplies recent execution outcomes for the operator API.
type ExecutionLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.ExecutionResult, error)
}

// maxExecutionsLimit caps how many rows one request may ask for.
const maxExecutionsLimit = 500

// ExecutionsHandler serves the recent-executions endpoint.
type ExecutionsHandler struct {
	lister ExecutionLister
	logger *slog.Logger
}

// NewExecutionsHandler creates an ExecutionsHandler over the given lister.
func NewExecutionsHandler(lister ExecutionLister, logger *slog.Logger) *ExecutionsHandler {
	return &ExecutionsHandler{
		lister: lister,
		logger: logger.With(slog.String("handler", "executions")),
	}
}

// ListExecutions responds with the most recent execution outcomes, newest
// first. The optional limit query parameter defaults to 50.
// GET /api/executions?limit=50
func (h *ExecutionsHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxExecutionsLimit {
		limit = maxExecutionsLimit
	}

	results, err := h.lister.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list executions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	items := make([]map[string]any, 0, len(results))
	for _, res := range results {
		items = append(items, map[string]any{
			"opportunity_id":  res.OpportunityID,
			"asset":           res.Asset,
			"success":         res.Success,
			"settlement_ref":  res.SettlementRef,
			"reason":          res.Reason,
			"observed_profit": res.ObservedProfit,
			"completed_at":    res.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(items),
		"executions": items,
	})
}

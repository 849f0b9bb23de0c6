package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// Controller is the pause/resume capability of the running bot.
type Controller interface {
	Pause(ctx context.Context, reason string)
	Resume(ctx context.Context)
}

// ControlHandler serves the operator pause/resume endpoints.
type ControlHandler struct {
	ctrl   Controller
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler over the given controller.
func NewControlHandler(ctrl Controller, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{
		ctrl:   ctrl,
		logger: logger.With(slog.String("handler", "control")),
	}
}

// Pause halts trade approvals.
// POST /api/control/pause
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	reason := "operator pause"
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err == nil && len(body) > 0 {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Reason != "" {
			reason = req.Reason
		}
	}

	h.ctrl.Pause(r.Context(), reason)
	h.logger.InfoContext(r.Context(), "pause requested", slog.String("reason", reason))
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused", "reason": reason})
}

// Resume lifts a pause.
// POST /api/control/resume
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Resume(r.Context())
	h.logger.InfoContext(r.Context(), "resume requested")
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

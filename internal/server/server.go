// Package server exposes the bot's operator API: health, status snapshot,
// and pause/resume control.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/server/handler"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Server is the headless operator API for the bot.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered. status is required;
// ctrl may be nil (control endpoints are then not registered), limiter may be
// nil (no per-client API rate limiting), and lister may be nil (the
// executions endpoint is then not registered).
func New(cfg Config, status handler.StatusProvider, ctrl handler.Controller, limiter domain.RateLimiter, lister handler.ExecutionLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	health := handler.NewHealthHandler(logger)
	mux.HandleFunc("GET /api/health", health.HealthCheck)

	sh := handler.NewStatusHandler(status)
	mux.HandleFunc("GET /api/status", sh.GetStatus)

	if ctrl != nil {
		ch := handler.NewControlHandler(ctrl, logger)
		mux.HandleFunc("POST /api/control/pause", ch.Pause)
		mux.HandleFunc("POST /api/control/resume", ch.Resume)
	}

	if lister != nil {
		eh := handler.NewExecutionsHandler(lister, logger)
		mux.HandleFunc("GET /api/executions", eh.ListExecutions)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, 10, time.Second)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

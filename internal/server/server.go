// Package server is the REST and websocket control surface of the agent.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vitorsaz/skull-agent/internal/config"
	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/server/handler"
	"github.com/vitorsaz/skull-agent/internal/server/middleware"
	"github.com/vitorsaz/skull-agent/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards mutating routes; empty disables authentication.
	APIKey string
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit      int
	RateLimitBurst int
}

// ConfigFrom maps the server config section.
func ConfigFrom(c config.ServerConfig) Config {
	return Config{
		Port:           c.Port,
		CORSOrigins:    c.CORSOrigins,
		APIKey:         c.ApiKey,
		RateLimit:      c.RateLimitRPS,
		RateLimitBurst: c.RateLimitBurst,
	}
}

// Handlers aggregates the HTTP handlers registered by the server.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Tokens    *handler.TokenHandler
	Positions *handler.PositionHandler
	Control   *handler.ControlHandler
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// Server is the HTTP + websocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in CORS, logging,
// optional rate limiting and auth. limiter and hub may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /tokens", handlers.Tokens.ListTokens)
	mux.HandleFunc("GET /token/{ca}", handlers.Tokens.GetToken)
	mux.HandleFunc("GET /logs", handlers.Tokens.ListLogs)
	mux.HandleFunc("GET /positions", handlers.Positions.ListPositions)

	mux.HandleFunc("POST /analyze", handlers.Control.Analyze)
	mux.HandleFunc("POST /snipe", handlers.Control.Snipe)
	mux.HandleFunc("POST /dump", handlers.Control.Dump)
	mux.HandleFunc("POST /toggle-sniper", handlers.Control.ToggleSniper)
	mux.HandleFunc("POST /claim-fees", handlers.Control.ClaimFees)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit+cfg.RateLimitBurst, time.Second, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

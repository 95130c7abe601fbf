// Package server hosts the HTTP boundary of the trade ledger.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/server/handler"
	"github.com/alanyoungcy/tradeledger/internal/server/middleware"
)

// TradesPath is where the trade endpoints are mounted.
const TradesPath = "/api/v1/trades"

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	APIKey       string // empty disables authentication
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RateLimit requests per RateLimitWindow per client on the trade
	// routes; zero or a nil Limiter disables it.
	RateLimit       int
	RateLimitWindow time.Duration
	Limiter         domain.RateLimiter
}

// Handlers aggregates the HTTP handlers the router registers.
type Handlers struct {
	Health *handler.HealthHandler
	Trades *handler.TradeHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewRouter builds the chi router. /healthz stays outside authentication.
func NewRouter(cfg Config, h Handlers, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	if h.Health != nil {
		r.Get("/healthz", h.Health.HealthCheck)
	}

	r.Route(TradesPath, func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.APIKey))
		r.Use(middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateLimitWindow, logger))
		h.Trades.Routes(r)
	})
	return r
}

// NewServer creates a Server serving the router built from h.
func NewServer(cfg Config, h Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "http"))

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(cfg, h, logger),
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

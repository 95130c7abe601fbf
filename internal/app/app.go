// Package app owns the process lifecycle of the trade ledger: it wires the
// stores, cache, broker clients and services, then runs the workers of the
// configured mode until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/tradeledger/internal/config"
)

// Operating modes.
const (
	ModeAPI      = "api"
	ModeConsumer = "consumer"
	ModeRelay    = "relay"
	ModeFull     = "full"
)

// App is the root application object. Cleanup functions registered during
// Run are called in reverse order by Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies for the configured mode and blocks until ctx is
// cancelled or a worker fails.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "app: starting",
		slog.String("mode", mode),
		slog.String("side_effect_policy", a.cfg.Trading.SideEffectPolicy),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case ModeAPI:
		return a.APIMode(ctx, deps)
	case ModeConsumer:
		return a.ConsumerMode(ctx, deps)
	case ModeRelay:
		return a.RelayMode(ctx, deps)
	case ModeFull:
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close releases every resource acquired by Run. Calling it again is a no-op.
func (a *App) Close() {
	a.logger.Info("app: shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

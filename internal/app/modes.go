package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradeledger/internal/messaging/kafka"
	"github.com/alanyoungcy/tradeledger/internal/pipeline"
	"github.com/alanyoungcy/tradeledger/internal/server"
	"github.com/alanyoungcy/tradeledger/internal/server/handler"
	"github.com/alanyoungcy/tradeledger/internal/service"
)

// APIMode serves the HTTP API only.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ConsumerMode runs the trade-executed consumer only.
func (a *App) ConsumerMode(ctx context.Context, deps *Dependencies) error {
	consumer, err := a.newConsumer(deps)
	if err != nil {
		return err
	}
	return pipeline.NewOrchestrator(consumer, nil, a.logger).Run(ctx)
}

// RelayMode drains the transactional outbox only.
func (a *App) RelayMode(ctx context.Context, deps *Dependencies) error {
	return pipeline.NewOrchestrator(nil, a.newRelay(deps), a.logger).Run(ctx)
}

// FullMode runs the HTTP API and the consumer in one process. The relay is
// added when trades are recorded with the outbox policy.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	consumer, err := a.newConsumer(deps)
	if err != nil {
		return err
	}
	var relay *pipeline.OutboxRelay
	if policy, _ := service.ParseSideEffectPolicy(a.cfg.Trading.SideEffectPolicy); policy == service.PolicyOutbox {
		relay = a.newRelay(deps)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	g.Go(func() error {
		return pipeline.NewOrchestrator(consumer, relay, a.logger).Run(ctx)
	})
	return g.Wait()
}

func (a *App) newConsumer(deps *Dependencies) (*pipeline.TradeEventConsumer, error) {
	reader, err := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         a.cfg.Kafka.Brokers,
		Topic:           a.cfg.Kafka.TradeExecutedTopic,
		GroupID:         a.cfg.Kafka.GroupID,
		AutoOffsetReset: a.cfg.Kafka.AutoOffsetReset,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: kafka reader: %w", err)
	}
	return pipeline.NewTradeEventConsumer(
		reader,
		pipeline.NewLogTradeHandler(a.logger),
		deps.Dedup,
		pipeline.ConsumerConfig{
			Throttle: a.cfg.Consumer.Throttle.Duration,
			DedupTTL: a.cfg.Consumer.DedupTTL.Duration,
		},
		a.logger,
	), nil
}

func (a *App) newRelay(deps *Dependencies) *pipeline.OutboxRelay {
	return pipeline.NewOutboxRelay(
		deps.Outbox,
		deps.Trades.SideEffects(),
		deps.Locks,
		pipeline.RelayConfig{
			PollInterval: a.cfg.Relay.PollInterval.Duration,
			BatchSize:    a.cfg.Relay.BatchSize,
			LockTTL:      a.cfg.Relay.LockTTL.Duration,
			Retry:        RetryConfig(a.cfg.Trading),
		},
		a.logger,
	)
}

// startHTTPServer runs the API server on g and shuts it down when ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	pingers := map[string]handler.Pinger{}
	if deps.Postgres != nil {
		pingers["postgres"] = deps.Postgres
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration,

		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		Limiter:         deps.Limiter,
	}, server.Handlers{
		Health: handler.NewHealthHandler(pingers, a.logger),
		Trades: handler.NewTradeHandler(deps.Trades, server.TradesPath, a.logger),
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.logger.Info("app: stopping http server", slog.Duration("timeout", timeout))
		return srv.Shutdown(shutCtx)
	})
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the background workers of one process: the event
// consumer and the outbox relay. Either may be nil.
type Orchestrator struct {
	consumer *TradeEventConsumer
	relay    *OutboxRelay
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(consumer *TradeEventConsumer, relay *OutboxRelay, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{consumer: consumer, relay: relay, logger: logger}
}

// Run starts every configured worker under one errgroup. A fatal error from
// one worker cancels the others and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline: orchestrator starting",
		slog.Bool("consumer", o.consumer != nil),
		slog.Bool("relay", o.relay != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.consumer != nil {
		g.Go(func() error {
			if err := o.consumer.Run(ctx); err != nil {
				return fmt.Errorf("trade consumer: %w", err)
			}
			return nil
		})
	}

	if o.relay != nil {
		g.Go(func() error {
			if err := o.relay.Run(ctx); err != nil {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	o.logger.Info("pipeline: orchestrator stopped")
	return err
}

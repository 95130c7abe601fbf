package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/retry"
	"github.com/alanyoungcy/tradeledger/internal/service"
)

// RelayLockKey names the distributed lock held while a relay drains a batch.
const RelayLockKey = "outbox-relay"

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	LockTTL      time.Duration
	Retry        retry.Config
}

// OutboxRelay forwards committed outbox events to the cache and the broker in
// insertion order. Delivery is at-least-once: an event may be published again
// if marking it dispatched fails.
type OutboxRelay struct {
	outbox  domain.OutboxStore
	effects *service.SideEffects
	locks   domain.LockManager
	cfg     RelayConfig
	now     func() time.Time
	logger  *slog.Logger
}

// NewOutboxRelay creates a relay. locks may be nil when only one relay runs.
func NewOutboxRelay(
	outbox domain.OutboxStore,
	effects *service.SideEffects,
	locks domain.LockManager,
	cfg RelayConfig,
	logger *slog.Logger,
) *OutboxRelay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxRelay{
		outbox:  outbox,
		effects: effects,
		locks:   locks,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "outbox-relay")),
	}
}

// Run drains the outbox every PollInterval until ctx is cancelled. Batch
// failures are logged and retried on the next tick.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "relay: starting",
		slog.Duration("poll_interval", r.cfg.PollInterval),
		slog.Int("batch_size", r.cfg.BatchSize),
	)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			r.logger.Info("relay: stopping")
			return nil
		case err != nil:
			r.logger.ErrorContext(ctx, "relay: batch failed",
				slog.Int("dispatched", n),
				slog.String("error", err.Error()),
			)
		case n > 0:
			r.logger.InfoContext(ctx, "relay: batch dispatched", slog.Int("dispatched", n))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay: stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce dispatches up to BatchSize pending entries and returns how many
// were marked dispatched. It stops at the first failing entry so later events
// never overtake it. Another relay holding the lock is not an error.
//
// The lease is extended before every entry and each entry gets at most half
// of LockTTL, so the lock cannot lapse while an entry is in flight.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	var lock domain.Lock
	if r.locks != nil {
		var err error
		lock, err = r.locks.Acquire(ctx, RelayLockKey, r.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.DebugContext(ctx, "relay: lock held elsewhere")
				return 0, nil
			}
			return 0, fmt.Errorf("relay: acquire lock: %w", err)
		}
		defer lock.Release()
	}

	entries, err := r.outbox.ListPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("relay: list pending: %w", err)
	}

	dispatched := 0
	for i, e := range entries {
		if lock != nil && i > 0 {
			if err := lock.Extend(ctx, r.cfg.LockTTL); err != nil {
				return dispatched, fmt.Errorf("relay: extend lock: %w", err)
			}
		}
		if err := r.dispatch(ctx, e); err != nil {
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

func (r *OutboxRelay) dispatch(ctx context.Context, e domain.OutboxEntry) error {
	entryCtx, cancel := context.WithTimeout(ctx, r.cfg.LockTTL/2)
	defer cancel()

	if err := r.effects.Dispatch(entryCtx, service.EventToDto(e.Event), e.Event, r.cfg.Retry); err != nil {
		if markErr := r.outbox.MarkFailed(ctx, e.ID, err.Error()); markErr != nil {
			r.logger.WarnContext(ctx, "relay: record failure",
				slog.Int64("outbox_id", e.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return fmt.Errorf("relay: dispatch outbox %d: %w", e.ID, err)
	}
	if err := r.outbox.MarkDispatched(entryCtx, e.ID, r.now()); err != nil {
		return fmt.Errorf("relay: mark outbox %d: %w", e.ID, err)
	}
	return nil
}

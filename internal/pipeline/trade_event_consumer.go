package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/tradeledger/internal/codec"
	"github.com/alanyoungcy/tradeledger/internal/domain"
	messaging "github.com/alanyoungcy/tradeledger/internal/messaging/kafka"
)

// ConsumerState is the observable phase of a TradeEventConsumer.
type ConsumerState int32

const (
	StateStarting ConsumerState = iota
	StatePolling
	StateProcessing
	StateStopping
	StateFaulted
)

func (s ConsumerState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateStopping:
		return "stopping"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultThrottle is the pause after every committed message.
const DefaultThrottle = 3 * time.Second

// ConsumerConfig tunes the consume loop.
type ConsumerConfig struct {
	Throttle time.Duration
	// DedupTTL > 0 enables the idempotency check keyed by event id.
	DedupTTL time.Duration
}

// TradeEventConsumer reads trade-executed events one at a time and commits
// each offset only after the event was handled.
//
// Failures fall into two classes. Fetch and decode failures are transient:
// they are logged, nothing is committed and the loop carries on. Commit
// failures, a closed reader and panics are fatal: Run returns the error and
// the state becomes StateFaulted. Cancelling ctx stops the loop cleanly.
type TradeEventConsumer struct {
	reader  messaging.MessageReader
	handler domain.TradeExecutedHandler
	dedup   domain.Deduplicator
	cfg     ConsumerConfig
	logger  *slog.Logger
	state   atomic.Int32
}

// NewTradeEventConsumer creates a consumer. dedup may be nil.
func NewTradeEventConsumer(
	reader messaging.MessageReader,
	handler domain.TradeExecutedHandler,
	dedup domain.Deduplicator,
	cfg ConsumerConfig,
	logger *slog.Logger,
) *TradeEventConsumer {
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeEventConsumer{
		reader:  reader,
		handler: handler,
		dedup:   dedup,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "trade-consumer")),
	}
}

// State returns the current phase.
func (c *TradeEventConsumer) State() ConsumerState {
	return ConsumerState(c.state.Load())
}

func (c *TradeEventConsumer) setState(s ConsumerState) {
	c.state.Store(int32(s))
}

// Run consumes until ctx is cancelled or a fatal error occurs. The reader is
// closed on every exit path.
func (c *TradeEventConsumer) Run(ctx context.Context) (err error) {
	c.setState(StateStarting)
	c.logger.InfoContext(ctx, "consumer: starting",
		slog.Duration("throttle", c.cfg.Throttle),
		slog.Bool("dedup", c.dedupEnabled()),
	)

	defer func() {
		if closeErr := c.reader.Close(); closeErr != nil {
			c.logger.Warn("consumer: close reader", slog.String("error", closeErr.Error()))
		}
		if err != nil {
			c.setState(StateFaulted)
			c.logger.Error("consumer: faulted", slog.String("error", err.Error()))
			return
		}
		c.setState(StateStopping)
		c.logger.Info("consumer: stopping")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.setState(StatePolling)
		msg, fetchErr := c.reader.FetchMessage(ctx)
		if fetchErr != nil {
			switch {
			case ctx.Err() != nil || errors.Is(fetchErr, context.Canceled):
				return nil
			case errors.Is(fetchErr, io.EOF):
				return fmt.Errorf("consumer: reader closed: %w", fetchErr)
			}
			c.logger.ErrorContext(ctx, "consumer: fetch failed", slog.String("error", fetchErr.Error()))
			if !sleepCtx(ctx, c.cfg.Throttle) {
				return nil
			}
			continue
		}

		c.setState(StateProcessing)
		committed, procErr := c.process(ctx, msg)
		if procErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return procErr
		}
		if committed && !sleepCtx(ctx, c.cfg.Throttle) {
			return nil
		}
	}
}

func (c *TradeEventConsumer) dedupEnabled() bool {
	return c.dedup != nil && c.cfg.DedupTTL > 0
}

// process handles one message. It reports whether the offset was committed;
// a non-nil error is fatal.
func (c *TradeEventConsumer) process(ctx context.Context, msg kafka.Message) (committed bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			committed = false
			err = fmt.Errorf("consumer: panic at partition %d offset %d: %v", msg.Partition, msg.Offset, p)
		}
	}()

	c.logger.InfoContext(ctx, "consumer: trade executed event received",
		slog.String("key", string(msg.Key)),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	evt, err := codec.Unmarshal[domain.TradeExecutedEvent](msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "consumer: decode failed",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return false, nil
	}

	if c.dedupEnabled() {
		seen, err := c.dedup.Processed(ctx, evt.ID.String())
		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "consumer: dedup unavailable, processing anyway",
				slog.String("trade_id", evt.ID.String()),
				slog.String("error", err.Error()),
			)
		case seen:
			c.logger.InfoContext(ctx, "consumer: duplicate event skipped", slog.String("trade_id", evt.ID.String()))
			return c.commit(ctx, msg)
		}
	}

	if c.handler != nil {
		if err := c.handler.HandleTradeExecuted(ctx, evt); err != nil {
			c.logger.ErrorContext(ctx, "consumer: handler failed",
				slog.String("trade_id", evt.ID.String()),
				slog.String("error", err.Error()),
			)
			return false, nil
		}
	}

	// The marker is written only once the event was handled, so a failed
	// attempt is retried on redelivery.
	if c.dedupEnabled() {
		if err := c.dedup.MarkProcessed(ctx, evt.ID.String(), c.cfg.DedupTTL); err != nil {
			c.logger.WarnContext(ctx, "consumer: dedup mark failed",
				slog.String("trade_id", evt.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return c.commit(ctx, msg)
}

func (c *TradeEventConsumer) commit(ctx context.Context, msg kafka.Message) (bool, error) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return false, fmt.Errorf("consumer: commit partition %d offset %d: %w", msg.Partition, msg.Offset, err)
	}
	c.logger.DebugContext(ctx, "consumer: committed",
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return true, nil
}

// LogTradeHandler is the default handler: it records the decoded event.
type LogTradeHandler struct {
	logger *slog.Logger
}

// NewLogTradeHandler creates a LogTradeHandler.
func NewLogTradeHandler(logger *slog.Logger) *LogTradeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTradeHandler{logger: logger}
}

// HandleTradeExecuted implements domain.TradeExecutedHandler.
func (h *LogTradeHandler) HandleTradeExecuted(ctx context.Context, evt domain.TradeExecutedEvent) error {
	h.logger.InfoContext(ctx, "consumer: trade executed",
		slog.String("trade_id", evt.ID.String()),
		slog.String("side", string(evt.Side)),
		slog.Int("quantity", evt.Quantity),
		slog.String("price", evt.Price.StringFixed(domain.MoneyScale)),
		slog.String("total_amount", evt.TotalAmount.StringFixed(domain.MoneyScale)),
		slog.Time("executed_at", evt.ExecutedAt),
	)
	return nil
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ domain.TradeExecutedHandler = (*LogTradeHandler)(nil)

package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tradeledger/internal/codec"
	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// TradeExecutedPublisher implements domain.TradeExecutedPublisher on top of a
// Producer. The trade id is the message key so every event for one trade
// lands on the same partition.
type TradeExecutedPublisher struct {
	producer *Producer
	topic    string
	logger   *slog.Logger
}

// NewTradeExecutedPublisher creates a publisher writing to topic.
func NewTradeExecutedPublisher(p *Producer, topic string, logger *slog.Logger) *TradeExecutedPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeExecutedPublisher{
		producer: p,
		topic:    topic,
		logger:   logger.With(slog.String("component", "trade-publisher")),
	}
}

// Publish serializes event and sends it.
func (p *TradeExecutedPublisher) Publish(ctx context.Context, event domain.TradeExecutedEvent) error {
	id := event.ID.String()
	p.logger.InfoContext(ctx, "kafka: publishing trade executed", slog.String("trade_id", id))

	payload, err := codec.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode trade %s: %w", id, err)
	}
	if err := p.producer.Produce(ctx, p.topic, id, payload); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "kafka: published trade executed", slog.String("trade_id", id))
	return nil
}

// Compile-time interface check.
var _ domain.TradeExecutedPublisher = (*TradeExecutedPublisher)(nil)

package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReaderConfig binds a consumer-group reader to one topic.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// AutoOffsetReset is "earliest" or "latest"; it applies only when the
	// group has no committed offset yet.
	AutoOffsetReset string
	MaxWait         time.Duration
}

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StartOffset maps the auto-offset-reset name onto kafka-go's constants.
func StartOffset(reset string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(reset)) {
	case "", "earliest":
		return kafka.FirstOffset, nil
	case "latest":
		return kafka.LastOffset, nil
	default:
		return 0, fmt.Errorf("kafka: unknown auto offset reset %q", reset)
	}
}

// NewReader creates a consumer-group reader. Offsets are only committed by
// explicit CommitMessages calls.
func NewReader(cfg ReaderConfig, logger *slog.Logger) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka: reader needs a topic and a group id")
	}
	start, err := StartOffset(cfg.AutoOffsetReset)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "kafka-reader"))

	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Second
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    start,
		CommitInterval: 0,
		MaxWait:        maxWait,
		Logger:         debugLogger(logger),
		ErrorLogger:    errorLogger(logger),
	}), nil
}

var _ MessageReader = (*kafka.Reader)(nil)

// Package kafka publishes trade events to, and reads them back from, Kafka
// using segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/tradeledger/internal/codec"
)

// ProducerConfig holds the writer settings.
type ProducerConfig struct {
	Brokers                []string
	ClientID               string
	WriteTimeout           time.Duration
	AllowAutoTopicCreation bool
}

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var errBlankArgument = errors.New("kafka: topic, key and value must not be blank")

// Producer sends keyed JSON messages and waits until every in-sync replica
// has acknowledged them. It never retries on its own; callers decide.
type Producer struct {
	writer MessageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer builds a synchronous writer with acks=all, a single attempt and
// hash partitioning on the message key.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "kafka-producer"))

	transport := &kafka.Transport{ClientID: cfg.ClientID}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1,
		BatchSize:              1,
		BatchTimeout:           time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: cfg.AllowAutoTopicCreation,
		Transport:              transport,
		Logger:                 debugLogger(logger),
		ErrorLogger:            errorLogger(logger),
	}
	return NewProducerWithWriter(w, logger), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w MessageWriter, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{writer: w, logger: logger, now: time.Now}
}

// Produce sends value under key to topic and blocks until acknowledged.
func (p *Producer) Produce(ctx context.Context, topic, key string, value []byte) error {
	if strings.TrimSpace(topic) == "" || strings.TrimSpace(key) == "" || len(strings.TrimSpace(string(value))) == 0 {
		return errBlankArgument
	}

	p.logger.DebugContext(ctx, "kafka: producing", slog.String("topic", topic))

	now := p.now()
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Time:    now,
		Headers: producedHeaders(codec.ContentType, codec.ContentEncoding, now),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "kafka: produce failed",
			slog.String("topic", topic),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("kafka: produce to %s: %w", topic, err)
	}

	p.logger.InfoContext(ctx, "kafka: produced",
		slog.String("topic", topic),
		slog.String("key", key),
		slog.Int("bytes", len(value)),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func debugLogger(logger *slog.Logger) kafka.Logger {
	return kafka.LoggerFunc(func(msg string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(msg, args...))
	})
}

func errorLogger(logger *slog.Logger) kafka.Logger {
	return kafka.LoggerFunc(func(msg string, args ...interface{}) {
		logger.Error(fmt.Sprintf(msg, args...))
	})
}

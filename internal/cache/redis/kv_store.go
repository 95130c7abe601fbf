package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// KVStore implements domain.KVStore with plain Redis strings and a per-key
// expiry. It is shared by every request and safe for concurrent use.
type KVStore struct {
	client *Client
	logger *slog.Logger
}

// NewKVStore creates a KVStore backed by the given Client.
func NewKVStore(c *Client, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		client: c,
		logger: logger.With(slog.String("component", "redis-cache")),
	}
}

// Get returns the raw value for key. A missing key is reported as
// found == false with a nil error.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.logger.DebugContext(ctx, "redis: retrieving", slog.String("key", key))

	data, err := s.client.rdb.Get(ctx, s.client.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logger.DebugContext(ctx, "redis: key not found", slog.String("key", key))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "redis: retrieved", slog.String("key", key))
	return data, true, nil
}

// Set writes value under key, replacing any previous value, with an absolute
// expiry of ttl.
func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.rdb.Set(ctx, s.client.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "redis: set",
		slog.String("key", key),
		slog.Duration("ttl", ttl),
	)
	return nil
}

// Compile-time interface check.
var _ domain.KVStore = (*KVStore)(nil)

// Package cache is the typed cache service: generic get/set over any
// domain.KVStore, with values serialized through the shared JSON codec.
// Keys are opaque here; callers own their key conventions.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/tradeledger/internal/codec"
	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// DefaultTTL is applied by Typed when no TTL is configured.
const DefaultTTL = 5 * time.Minute

var errEmptyKey = errors.New("cache: key must not be empty")

// Get loads key and decodes it into a T. A missing key is (zero, false, nil).
func Get[T any](ctx context.Context, store domain.KVStore, key string) (T, bool, error) {
	var zero T
	if key == "" {
		return zero, false, errEmptyKey
	}

	data, found, err := store.Get(ctx, key)
	if err != nil {
		return zero, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if !found {
		return zero, false, nil
	}

	v, err := codec.Unmarshal[T](data)
	if err != nil {
		return zero, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return v, true, nil
}

// Set encodes value and stores it under key for ttl.
func Set[T any](ctx context.Context, store domain.KVStore, key string, value T, ttl time.Duration) error {
	if key == "" {
		return errEmptyKey
	}

	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Typed binds a value type and a TTL to a store.
type Typed[T any] struct {
	store domain.KVStore
	ttl   time.Duration
}

// NewTyped creates a Typed cache. A non-positive ttl falls back to DefaultTTL.
func NewTyped[T any](store domain.KVStore, ttl time.Duration) *Typed[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Typed[T]{store: store, ttl: ttl}
}

// Get returns the cached value for key.
func (c *Typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	return Get[T](ctx, c.store, key)
}

// Set stores value under key with the configured TTL.
func (c *Typed[T]) Set(ctx context.Context, key string, value T) error {
	return Set(ctx, c.store, key, value, c.ttl)
}

// TTL returns the expiry applied by Set.
func (c *Typed[T]) TTL() time.Duration {
	return c.ttl
}

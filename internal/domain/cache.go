package domain

import (
	"context"
	"time"
)

// KVStore is the raw byte store behind the typed cache service. Get reports a
// missing key as found == false with a nil error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lease. Extend pushes the expiry to ttl from now and returns
// ErrLockLost once another holder owns the key. Release is idempotent.
type Lock interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

// Deduplicator remembers event ids that were handled successfully. Callers
// check Processed first and call MarkProcessed only after handling succeeded.
type Deduplicator interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

// RateLimiter counts requests per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Package retry runs an operation again after transient failures, waiting an
// exponentially growing, optionally jittered interval between attempts.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config controls the retry loop.
type Config struct {
	// MaxRetries is the number of attempts after the first one. Zero runs the
	// operation exactly once.
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// BackoffFactor multiplies the wait after every retry.
	BackoffFactor float64
	// Jitter adds up to one extra backoff of random delay.
	Jitter bool
}

// DefaultConfig is used by the side-effect policies when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// IsRetryableFunc decides whether err warrants another attempt.
type IsRetryableFunc func(error) bool

// OnRetryFunc is called before each retry. attempt starts at 1.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Always treats every error as retryable.
func Always(error) bool { return true }

func (c Config) withDefaults() Config {
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2.0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 10 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 100 * time.Millisecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Do calls fn until it succeeds, returns a non-retryable error, the retries
// are exhausted or ctx is done. A nil isRetryable means Always.
func Do[T any](
	ctx context.Context,
	cfg Config,
	isRetryable IsRetryableFunc,
	onRetry OnRetryFunc,
	fn func(context.Context) (T, error),
) (T, error) {
	var (
		zero    T
		lastErr error
	)
	cfg = cfg.withDefaults()
	if isRetryable == nil {
		isRetryable = Always
	}

	backoff := cfg.InitialBackoff
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff
			if cfg.Jitter {
				wait += time.Duration(rand.Int64N(int64(backoff)))
			}
			if onRetry != nil {
				onRetry(attempt, lastErr, wait)
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry: cancelled after %d attempts: %w", attempt, lastErr)
			case <-timer.C:
			}

			backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("retry: gave up after %d retries: %w", cfg.MaxRetries, lastErr)
}

// DoVoid is Do for operations without a result.
func DoVoid(
	ctx context.Context,
	cfg Config,
	isRetryable IsRetryableFunc,
	onRetry OnRetryFunc,
	fn func(context.Context) error,
) error {
	_, err := Do(ctx, cfg, isRetryable, onRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

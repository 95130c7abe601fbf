package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/tradeledger/internal/cache"
	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/retry"
)

// SideEffectPolicy selects what happens after a trade is committed.
type SideEffectPolicy string

const (
	// PolicyStrict caches and publishes inline; any failure is returned to
	// the caller even though the trade is already durable.
	PolicyStrict SideEffectPolicy = "strict"
	// PolicyBestEffort retries the cache write and the publish, then logs a
	// final failure and still reports success.
	PolicyBestEffort SideEffectPolicy = "best_effort"
	// PolicyOutbox writes the event next to the trade in one transaction and
	// leaves cache and broker to the relay.
	PolicyOutbox SideEffectPolicy = "outbox"
)

// ParseSideEffectPolicy accepts the configured policy name.
func ParseSideEffectPolicy(s string) (SideEffectPolicy, error) {
	switch p := SideEffectPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyStrict, nil
	case PolicyStrict, PolicyBestEffort, PolicyOutbox:
		return p, nil
	default:
		return "", fmt.Errorf("service: unknown side effect policy %q", s)
	}
}

// SideEffects writes a committed trade to the cache and publishes its event.
// The execute handler and the outbox relay share it.
type SideEffects struct {
	cache     *cache.Typed[domain.TradeDto]
	publisher domain.TradeExecutedPublisher
	logger    *slog.Logger
}

// NewSideEffects creates a SideEffects.
func NewSideEffects(c *cache.Typed[domain.TradeDto], p domain.TradeExecutedPublisher, logger *slog.Logger) *SideEffects {
	if logger == nil {
		logger = slog.Default()
	}
	return &SideEffects{cache: c, publisher: p, logger: logger}
}

// CacheTTL is the expiry applied to cached trades.
func (s *SideEffects) CacheTTL() time.Duration { return s.cache.TTL() }

// Dispatch caches dto, then publishes evt. Each step is retried under cfg;
// a zero cfg runs each step once. The first step that still fails stops the
// dispatch.
func (s *SideEffects) Dispatch(ctx context.Context, dto domain.TradeDto, evt domain.TradeExecutedEvent, cfg retry.Config) error {
	id := dto.ID.String()
	onRetry := func(step string) retry.OnRetryFunc {
		return func(attempt int, err error, backoff time.Duration) {
			s.logger.WarnContext(ctx, "service: retrying side effect",
				slog.String("step", step),
				slog.String("trade_id", id),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := retry.DoVoid(ctx, cfg, nil, onRetry("cache"), func(ctx context.Context) error {
		return s.cache.Set(ctx, TradeCacheKey(dto.ID), dto)
	}); err != nil {
		return fmt.Errorf("service: cache trade %s: %w", id, err)
	}

	if err := retry.DoVoid(ctx, cfg, nil, onRetry("publish"), func(ctx context.Context) error {
		return s.publisher.Publish(ctx, evt)
	}); err != nil {
		return fmt.Errorf("service: publish trade %s: %w", id, err)
	}
	return nil
}

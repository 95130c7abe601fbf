package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/tradeledger/internal/cache/redis"
	"github.com/alanyoungcy/tradeledger/internal/config"
	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/messaging/kafka"
	"github.com/alanyoungcy/tradeledger/internal/retry"
	"github.com/alanyoungcy/tradeledger/internal/service"
	"github.com/alanyoungcy/tradeledger/internal/store/postgres"
)

// Dependencies bundles what the modes run on. Fields a mode does not need
// are left nil.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client

	UnitOfWork domain.UnitOfWorkFactory
	Outbox     domain.OutboxStore

	KV      domain.KVStore
	Locks   domain.LockManager
	Dedup   domain.Deduplicator
	Limiter domain.RateLimiter

	Producer  *kafka.Producer
	Publisher domain.TradeExecutedPublisher

	Trades *service.TradeService
}

// needsPostgres reports whether mode writes or reads trades.
func needsPostgres(mode string) bool {
	switch mode {
	case ModeAPI, ModeRelay, ModeFull:
		return true
	default:
		return false
	}
}

// needsRedis reports whether mode touches the cache, the relay lock or the
// consumer dedup markers.
func needsRedis(mode string, cfg *config.Config) bool {
	if needsPostgres(mode) {
		return true
	}
	return mode == ModeConsumer && cfg.Consumer.DedupTTL.Duration > 0
}

// RetryConfig converts the trading.retry_* settings.
func RetryConfig(t config.TradingConfig) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = t.RetryMaxRetries
	if t.RetryInitialBackoff.Duration > 0 {
		rc.InitialBackoff = t.RetryInitialBackoff.Duration
	}
	if t.RetryMaxBackoff.Duration > 0 {
		rc.MaxBackoff = t.RetryMaxBackoff.Duration
	}
	return rc
}

// Wire builds the dependencies required by cfg.Mode. The returned cleanup
// closes them in reverse order and must be called once the app stops.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	deps := &Dependencies{}

	if needsPostgres(mode) {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:             cfg.Postgres.DSN,
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxConns:        cfg.Postgres.PoolMaxConns,
			MinConns:        cfg.Postgres.PoolMinConns,
			ConnectTimeout:  cfg.Postgres.ConnectTimeout.Duration,
			ApplicationName: "tradeledger-" + mode,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: migrations: %w", err))
			}
		}

		deps.Postgres = pg
		deps.UnitOfWork = postgres.NewUnitOfWorkFactory(pg)
		deps.Outbox = postgres.NewOutboxStore(pg.Pool())
		logger.InfoContext(ctx, "wire: postgres connected")
	}

	if needsRedis(mode, cfg) {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MaxRetries:   cfg.Redis.MaxRetries,
			TLSEnabled:   cfg.Redis.TLSEnabled,
			DialTimeout:  cfg.Redis.DialTimeout.Duration,
			InstanceName: cfg.Redis.InstanceName,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.Redis = rc
		deps.KV = redis.NewKVStore(rc, logger)
		deps.Locks = redis.NewLockManager(rc)
		deps.Limiter = redis.NewRateLimiter(rc)
		if cfg.Consumer.DedupTTL.Duration > 0 {
			deps.Dedup = redis.NewDeduplicator(rc)
		}
		logger.InfoContext(ctx, "wire: redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	if needsPostgres(mode) {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:                cfg.Kafka.Brokers,
			ClientID:               cfg.Kafka.ClientID,
			WriteTimeout:           cfg.Kafka.WriteTimeout.Duration,
			AllowAutoTopicCreation: cfg.Kafka.AllowAutoCreateTopics,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: kafka producer: %w", err))
		}
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				logger.Warn("wire: close kafka producer", slog.String("error", err.Error()))
			}
		})
		deps.Producer = producer
		deps.Publisher = kafka.NewTradeExecutedPublisher(producer, cfg.Kafka.TradeExecutedTopic, logger)

		policy, err := service.ParseSideEffectPolicy(cfg.Trading.SideEffectPolicy)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		deps.Trades = service.NewTradeService(deps.UnitOfWork, deps.KV, deps.Publisher, service.TradeServiceConfig{
			Policy:   policy,
			CacheTTL: cfg.Trading.CacheTTL.Duration,
			Retry:    RetryConfig(cfg.Trading),
		}, logger)
	}

	return deps, cleanup, nil
}

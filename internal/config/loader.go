package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADELEDGER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADELEDGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TRADELEDGER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "TRADELEDGER_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TRADELEDGER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADELEDGER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADELEDGER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADELEDGER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADELEDGER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADELEDGER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADELEDGER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADELEDGER_POSTGRES_POOL_MIN_CONNS")
	setDuration(&cfg.Postgres.ConnectTimeout, "TRADELEDGER_POSTGRES_CONNECT_TIMEOUT")
	setBool(&cfg.Postgres.RunMigrations, "TRADELEDGER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TRADELEDGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADELEDGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADELEDGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADELEDGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADELEDGER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADELEDGER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.DialTimeout, "TRADELEDGER_REDIS_DIAL_TIMEOUT")
	setStr(&cfg.Redis.InstanceName, "TRADELEDGER_REDIS_INSTANCE_NAME")

	// ── Kafka ──
	setStringSlice(&cfg.Kafka.Brokers, "TRADELEDGER_KAFKA_BROKERS")
	setStr(&cfg.Kafka.ClientID, "TRADELEDGER_KAFKA_CLIENT_ID")
	setStr(&cfg.Kafka.TradeExecutedTopic, "TRADELEDGER_KAFKA_TRADE_EXECUTED_TOPIC")
	setStr(&cfg.Kafka.GroupID, "TRADELEDGER_KAFKA_GROUP_ID")
	setStr(&cfg.Kafka.AutoOffsetReset, "TRADELEDGER_KAFKA_AUTO_OFFSET_RESET")
	setBool(&cfg.Kafka.AllowAutoCreateTopics, "TRADELEDGER_KAFKA_ALLOW_AUTO_CREATE_TOPICS")
	setDuration(&cfg.Kafka.WriteTimeout, "TRADELEDGER_KAFKA_WRITE_TIMEOUT")

	// ── Consumer ──
	setDuration(&cfg.Consumer.Throttle, "TRADELEDGER_CONSUMER_THROTTLE")
	setDuration(&cfg.Consumer.DedupTTL, "TRADELEDGER_CONSUMER_DEDUP_TTL")

	// ── Trading ──
	setStr(&cfg.Trading.SideEffectPolicy, "TRADELEDGER_TRADING_SIDE_EFFECT_POLICY")
	setDuration(&cfg.Trading.CacheTTL, "TRADELEDGER_TRADING_CACHE_TTL")
	setInt(&cfg.Trading.RetryMaxRetries, "TRADELEDGER_TRADING_RETRY_MAX_RETRIES")
	setDuration(&cfg.Trading.RetryInitialBackoff, "TRADELEDGER_TRADING_RETRY_INITIAL_BACKOFF")
	setDuration(&cfg.Trading.RetryMaxBackoff, "TRADELEDGER_TRADING_RETRY_MAX_BACKOFF")

	// ── Relay ──
	setDuration(&cfg.Relay.PollInterval, "TRADELEDGER_RELAY_POLL_INTERVAL")
	setInt(&cfg.Relay.BatchSize, "TRADELEDGER_RELAY_BATCH_SIZE")
	setDuration(&cfg.Relay.LockTTL, "TRADELEDGER_RELAY_LOCK_TTL")

	// ── Server ──
	setInt(&cfg.Server.Port, "TRADELEDGER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADELEDGER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRADELEDGER_SERVER_API_KEY")
	setDuration(&cfg.Server.ReadTimeout, "TRADELEDGER_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "TRADELEDGER_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "TRADELEDGER_SERVER_SHUTDOWN_TIMEOUT")
	setInt(&cfg.Server.RateLimit, "TRADELEDGER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "TRADELEDGER_SERVER_RATE_LIMIT_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADELEDGER_MODE")
	setStr(&cfg.LogLevel, "TRADELEDGER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

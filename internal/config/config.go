// Package config defines the trade ledger's configuration and provides
// validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADELEDGER_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Consumer ConsumerConfig `toml:"consumer"`
	Trading  TradingConfig  `toml:"trading"`
	Relay    RelayConfig    `toml:"relay"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	DialTimeout  duration `toml:"dial_timeout"`
	InstanceName string   `toml:"instance_name"`
}

// KafkaConfig holds broker, topic and consumer-group settings.
type KafkaConfig struct {
	Brokers               []string `toml:"brokers"`
	ClientID              string   `toml:"client_id"`
	TradeExecutedTopic    string   `toml:"trade_executed_topic"`
	GroupID               string   `toml:"group_id"`
	AutoOffsetReset       string   `toml:"auto_offset_reset"`
	AllowAutoCreateTopics bool     `toml:"allow_auto_create_topics"`
	WriteTimeout          duration `toml:"write_timeout"`
}

// ConsumerConfig tunes the trade event consumer.
type ConsumerConfig struct {
	Throttle duration `toml:"throttle"`
	// DedupTTL enables the idempotent consumer when positive.
	DedupTTL duration `toml:"dedup_ttl"`
}

// TradingConfig tunes the command and query handlers.
type TradingConfig struct {
	// SideEffectPolicy is one of strict, best_effort or outbox.
	SideEffectPolicy    string   `toml:"side_effect_policy"`
	CacheTTL            duration `toml:"cache_ttl"`
	RetryMaxRetries     int      `toml:"retry_max_retries"`
	RetryInitialBackoff duration `toml:"retry_initial_backoff"`
	RetryMaxBackoff     duration `toml:"retry_max_backoff"`
}

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	PollInterval duration `toml:"poll_interval"`
	BatchSize    int      `toml:"batch_size"`
	LockTTL      duration `toml:"lock_ttl"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "trading",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			ConnectTimeout: duration{5 * time.Second},
			RunMigrations:  true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			DialTimeout:  duration{5 * time.Second},
			InstanceName: "tradeledger",
		},
		Kafka: KafkaConfig{
			Brokers:            []string{"localhost:9092"},
			ClientID:           "tradeledger",
			TradeExecutedTopic: "trade-executed",
			GroupID:            "trade-executed-consumer",
			AutoOffsetReset:    "earliest",
			WriteTimeout:       duration{10 * time.Second},
		},
		Consumer: ConsumerConfig{
			Throttle: duration{3 * time.Second},
		},
		Trading: TradingConfig{
			SideEffectPolicy:    "strict",
			CacheTTL:            duration{5 * time.Minute},
			RetryMaxRetries:     3,
			RetryInitialBackoff: duration{100 * time.Millisecond},
			RetryMaxBackoff:     duration{2 * time.Second},
		},
		Relay: RelayConfig{
			PollInterval: duration{time.Second},
			BatchSize:    100,
			LockTTL:      duration{30 * time.Second},
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"},
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{15 * time.Second},
			ShutdownTimeout: duration{10 * time.Second},
			RateLimit:       600,
			RateLimitWindow: duration{time.Minute},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"api":      true,
	"consumer": true,
	"relay":    true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validPolicies = map[string]bool{
	"strict":      true,
	"best_effort": true,
	"outbox":      true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: api, consumer, relay, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, "kafka: brokers must not be empty")
	}
	if c.Kafka.TradeExecutedTopic == "" {
		errs = append(errs, "kafka: trade_executed_topic must not be empty")
	}
	if (mode == "consumer" || mode == "full") && c.Kafka.GroupID == "" {
		errs = append(errs, "kafka: group_id is required for mode "+mode)
	}
	switch strings.ToLower(c.Kafka.AutoOffsetReset) {
	case "", "earliest", "latest":
	default:
		errs = append(errs, fmt.Sprintf("kafka: auto_offset_reset must be earliest or latest, got %q", c.Kafka.AutoOffsetReset))
	}

	// Consumer
	if c.Consumer.Throttle.Duration < 0 {
		errs = append(errs, "consumer: throttle must be >= 0")
	}
	if c.Consumer.DedupTTL.Duration < 0 {
		errs = append(errs, "consumer: dedup_ttl must be >= 0")
	}

	// Trading
	if !validPolicies[strings.ToLower(c.Trading.SideEffectPolicy)] {
		errs = append(errs, fmt.Sprintf("trading: unknown side_effect_policy %q (valid: strict, best_effort, outbox)", c.Trading.SideEffectPolicy))
	}
	if c.Trading.CacheTTL.Duration <= 0 {
		errs = append(errs, "trading: cache_ttl must be > 0")
	}
	if c.Trading.RetryMaxRetries < 0 {
		errs = append(errs, "trading: retry_max_retries must be >= 0")
	}
	if c.Trading.RetryMaxBackoff.Duration < c.Trading.RetryInitialBackoff.Duration {
		errs = append(errs, "trading: retry_max_backoff must not be below retry_initial_backoff")
	}

	// Relay
	if c.Relay.PollInterval.Duration <= 0 {
		errs = append(errs, "relay: poll_interval must be > 0")
	}
	if c.Relay.BatchSize < 1 {
		errs = append(errs, "relay: batch_size must be >= 1")
	}
	if c.Relay.LockTTL.Duration <= 0 {
		errs = append(errs, "relay: lock_ttl must be > 0")
	}

	// Server
	if mode == "api" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	DatabaseURL string

	KafkaBrokers []string
	KafkaClientID string

	OrdersConsumerGroup      string
	PaymentConsumerGroup     string
	FulfillmentConsumerGroup string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxBaseBackoff  time.Duration

	IdempotencyBackend         string
	IdempotencyTTL             time.Duration
	IdempotencyCleanupInterval time.Duration
	RedisAddr                  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		KafkaBrokers:  splitCSV(getEnv("KAFKA_BROKERS", "localhost:19092")),
		KafkaClientID: getEnv("KAFKA_CLIENT_ID", "pdq-checkout"),

		OrdersConsumerGroup:      getEnv("KAFKA_ORDERS_CONSUMER_GROUP", "pdq-orders"),
		PaymentConsumerGroup:     getEnv("KAFKA_PAYMENT_CONSUMER_GROUP", "pdq-payment"),
		FulfillmentConsumerGroup: getEnv("KAFKA_FULFILLMENT_CONSUMER_GROUP", "pdq-fulfillment"),

		OutboxBatchSize:   getEnvInt("OUTBOX_BATCH_SIZE", 10),
		OutboxMaxAttempts: getEnvInt("OUTBOX_MAX_ATTEMPTS", 5),

		IdempotencyBackend: strings.ToLower(getEnv("IDEMPOTENCY_BACKEND", "db")),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
	}

	var err error
	if cfg.OutboxPollInterval, err = getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxBaseBackoff, err = getEnvDuration("OUTBOX_BASE_BACKOFF", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.IdempotencyCleanupInterval, err = getEnvDuration("IDEMPOTENCY_CLEANUP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, "KAFKA_BROKERS is required")
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, "OUTBOX_BATCH_SIZE must be > 0")
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, "OUTBOX_MAX_ATTEMPTS must be > 0")
	}
	if c.OutboxPollInterval < 100*time.Millisecond {
		errs = append(errs, "OUTBOX_POLL_INTERVAL must be at least 100ms")
	}
	if c.OutboxBaseBackoff <= 0 {
		errs = append(errs, "OUTBOX_BASE_BACKOFF must be > 0")
	}
	if c.IdempotencyBackend != "db" && c.IdempotencyBackend != "redis" {
		errs = append(errs, "IDEMPOTENCY_BACKEND must be db or redis")
	}
	if c.IdempotencyBackend == "redis" && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when IDEMPOTENCY_BACKEND=redis")
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, "IDEMPOTENCY_TTL must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

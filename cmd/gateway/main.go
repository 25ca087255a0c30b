package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roi007leaf/pdq-checkout/internal/config"
	"github.com/roi007leaf/pdq-checkout/internal/database"
	"github.com/roi007leaf/pdq-checkout/internal/gateway"
	"github.com/roi007leaf/pdq-checkout/internal/idempotency"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
	"github.com/roi007leaf/pdq-checkout/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("development", "info").Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel).With("app", "api-gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store idempotency.Store
	switch cfg.IdempotencyBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err.Error())
			os.Exit(1)
		}
		store = idempotency.NewRedisStore(client, "idem", cfg.IdempotencyTTL)
		logger.Info("idempotency store ready", "backend", "redis")
	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err.Error())
			os.Exit(1)
		}
		if err := database.MigrateGateway(db); err != nil {
			logger.Error("migration failed", "error", err.Error())
			os.Exit(1)
		}
		dbStore := idempotency.NewDBStore(db, cfg.IdempotencyTTL)
		store = dbStore
		go runCleanup(ctx, dbStore, cfg.IdempotencyCleanupInterval, logger)
		logger.Info("idempotency store ready", "backend", "db")
	}

	producer := messaging.NewKafkaProducer(ctx, cfg.KafkaBrokers, logger)
	defer producer.Close()

	handler := gateway.NewCheckoutHandler(store, producer, gateway.NewCartService(), logger)
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           gateway.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err.Error())
	}
	logger.Info("stopped")
}

func runCleanup(ctx context.Context, store idempotency.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupExpired(ctx, time.Now().UTC(), 500)
			if err != nil {
				logger.Warn("idempotency cleanup failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				logger.Info("expired idempotency records removed", "count", removed)
			}
		}
	}
}

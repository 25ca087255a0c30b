package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/roi007leaf/pdq-checkout/internal/config"
	"github.com/roi007leaf/pdq-checkout/internal/database"
	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/http/response"
	"github.com/roi007leaf/pdq-checkout/internal/inbox"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
	"github.com/roi007leaf/pdq-checkout/internal/observability"
	"github.com/roi007leaf/pdq-checkout/internal/outbox"
	"github.com/roi007leaf/pdq-checkout/internal/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("development", "info").Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel).With("app", "payment-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	if err := database.MigratePayment(db); err != nil {
		logger.Error("migration failed", "error", err.Error())
		os.Exit(1)
	}

	producer := messaging.NewKafkaProducer(ctx, cfg.KafkaBrokers, logger)
	defer producer.Close()

	guard := inbox.NewGuard(cfg.PaymentConsumerGroup)
	svc := payment.NewService(db, guard, payment.NewMockGateway(), logger)

	publisher := outbox.NewPublisher(db, producer, outbox.Config{
		Source:       "payment-service",
		Routes:       payment.PublisherRoutes,
		DefaultTopic: events.TopicPaymentEvents,
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
		BaseBackoff:  cfg.OutboxBaseBackoff,
	}, logger)

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.PaymentConsumerGroup, events.TopicPaymentRequests, svc.HandlePaymentRequestMessage, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); publisher.Run(ctx) }()
	go func() { defer wg.Done(); consumer.Run(ctx) }()

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok", "service": "payment-service"})
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
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
	_ = consumer.Close()
	wg.Wait()
	logger.Info("stopped")
}

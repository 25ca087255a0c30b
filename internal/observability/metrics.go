package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce sync.Once

	outboxPublishCounter    metric.Int64Counter
	inboxMessageCounter     metric.Int64Counter
	idempotencyCheckCounter metric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter("pdq-checkout")
	outboxPublishCounter, _ = meter.Int64Counter(
		"outbox_publish_total",
		metric.WithDescription("Outbox publish attempts by outcome"),
	)
	inboxMessageCounter, _ = meter.Int64Counter(
		"inbox_messages_total",
		metric.WithDescription("Consumed broker messages by outcome"),
	)
	idempotencyCheckCounter, _ = meter.Int64Counter(
		"idempotency_checks_total",
		metric.WithDescription("Idempotency key checks by resulting state"),
	)
}

func RecordOutboxPublish(ctx context.Context, service, outcome string) {
	metricsOnce.Do(initMetrics)
	if outboxPublishCounter == nil {
		return
	}
	outboxPublishCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("outcome", outcome),
	))
}

func RecordInboxMessage(ctx context.Context, group, outcome string) {
	metricsOnce.Do(initMetrics)
	if inboxMessageCounter == nil {
		return
	}
	inboxMessageCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("consumer_group", group),
		attribute.String("outcome", outcome),
	))
}

func RecordIdempotencyCheck(ctx context.Context, scope, state string) {
	metricsOnce.Do(initMetrics)
	if idempotencyCheckCounter == nil {
		return
	}
	idempotencyCheckCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("state", state),
	))
}

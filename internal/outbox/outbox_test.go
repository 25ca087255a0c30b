package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	topic   string
	key     []byte
	value   []byte
	headers []messaging.Header
}

type fakeProducer struct {
	ready    bool
	failWith error
	sent     []published
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key, value []byte, headers ...messaging.Header) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, published{topic: topic, key: key, value: value, headers: headers})
	return nil
}

func (f *fakeProducer) Ready() bool  { return f.ready }
func (f *fakeProducer) Close() error { return nil }

func TestAppendWritesPendingEventInTransaction(t *testing.T) {
	db := newTestDB(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := Append(tx, "Order", "order-1", events.TypeOrderCreated,
			map[string]string{"orderId": "order-1"}, events.Headers{CorrelationID: "corr-1"})
		return err
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var event domain.OutboxEvent
	if err := db.First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.Status != domain.OutboxStatusPending {
		t.Fatalf("expected PENDING, got %s", event.Status)
	}
	if event.AggregateID != "order-1" || event.EventType != events.TypeOrderCreated {
		t.Fatalf("unexpected event row: %+v", event)
	}
	var headers events.Headers
	if err := json.Unmarshal(event.Headers, &headers); err != nil || headers.CorrelationID != "corr-1" {
		t.Fatalf("headers not preserved: %s (%v)", event.Headers, err)
	}
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	db := newTestDB(t)

	boom := errors.New("business write failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := Append(tx, "Order", "order-1", events.TypeOrderCreated, map[string]string{}, events.Headers{}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected rollback error, got %v", err)
	}

	var count int64
	if err := db.Model(&domain.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled-back event must not exist, found %d", count)
	}
}

func newPublisherForTest(t *testing.T, db *gorm.DB, producer messaging.Producer) *Publisher {
	t.Helper()
	return NewPublisher(db, producer, Config{
		Source:       "orders-service",
		Routes:       Routes{events.TypePaymentRequested: events.TopicPaymentRequests},
		DefaultTopic: events.TopicOrderEvents,
		PollInterval: time.Second,
		BatchSize:    10,
		MaxAttempts:  3,
		BaseBackoff:  time.Second,
	}, testLogger())
}

func appendPending(t *testing.T, db *gorm.DB, eventType string) string {
	t.Helper()
	var id string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = Append(tx, "Order", "order-1", eventType,
			map[string]string{"orderId": "order-1"}, events.Headers{CorrelationID: "corr-1"})
		return err
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return id
}

func TestPublishBatchPublishesAndMarks(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{ready: true}
	pub := newPublisherForTest(t, db, producer)
	id := appendPending(t, db, events.TypePaymentRequested)

	n, err := pub.PublishBatch(context.Background())
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if n != 1 || len(producer.sent) != 1 {
		t.Fatalf("expected 1 publish, got n=%d sent=%d", n, len(producer.sent))
	}

	msg := producer.sent[0]
	if msg.topic != events.TopicPaymentRequests {
		t.Fatalf("routing failed, got topic %s", msg.topic)
	}
	if string(msg.key) != "order-1" {
		t.Fatalf("message must be keyed by aggregate id, got %s", msg.key)
	}

	env, err := events.ParseEnvelope(msg.value)
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("envelope eventId must equal the outbox row id")
	}
	if env.SpecVersion != events.SpecVersion || env.Source != "orders-service" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Correlation() != "corr-1" {
		t.Fatalf("correlation id lost: %+v", env.CorrelationID)
	}

	var row domain.OutboxEvent
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Status != domain.OutboxStatusPublished || row.PublishedAt == nil {
		t.Fatalf("expected PUBLISHED with timestamp, got %+v", row)
	}
}

func TestPublishBatchSchedulesRetryOnFailure(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{ready: true, failWith: errors.New("broker sneezed")}
	pub := newPublisherForTest(t, db, producer)
	id := appendPending(t, db, events.TypeOrderCreated)

	before := time.Now().UTC()
	if _, err := pub.PublishBatch(context.Background()); err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}

	var row domain.OutboxEvent
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Status != domain.OutboxStatusPending {
		t.Fatalf("expected PENDING for retry, got %s", row.Status)
	}
	if row.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", row.Attempts)
	}
	if !row.AvailableAt.After(before) {
		t.Fatal("retry must be scheduled in the future")
	}
	if !strings.Contains(row.LastError, "broker sneezed") {
		t.Fatalf("last error not recorded: %q", row.LastError)
	}

	// Not yet due, so the next batch skips it.
	n, err := pub.PublishBatch(context.Background())
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("backed-off event must not be retried early, published %d", n)
	}
}

func TestPublishBatchParksEventAfterMaxAttempts(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{ready: true, failWith: errors.New("still down")}
	pub := newPublisherForTest(t, db, producer)
	id := appendPending(t, db, events.TypeOrderCreated)

	// Rewind available_at between rounds so backoff does not hide the row.
	for i := 0; i < 3; i++ {
		if err := db.Model(&domain.OutboxEvent{}).Where("id = ?", id).
			Update("available_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
			t.Fatalf("rewind: %v", err)
		}
		if _, err := pub.PublishBatch(context.Background()); err != nil {
			t.Fatalf("PublishBatch: %v", err)
		}
	}

	var row domain.OutboxEvent
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Status != domain.OutboxStatusFailed {
		t.Fatalf("expected FAILED after max attempts, got %s with %d attempts", row.Status, row.Attempts)
	}
}

func TestPublishBatchIdlesWhileProducerDisabled(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{ready: false}
	pub := newPublisherForTest(t, db, producer)
	id := appendPending(t, db, events.TypeOrderCreated)

	n, err := pub.PublishBatch(context.Background())
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if n != 0 || len(producer.sent) != 0 {
		t.Fatal("disabled producer must not publish")
	}

	var row domain.OutboxEvent
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Status != domain.OutboxStatusPending || row.Attempts != 0 {
		t.Fatalf("event must stay untouched, got %+v", row)
	}
}

func TestPublishBatchPreservesOrderWithinBatch(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{ready: true}
	pub := newPublisherForTest(t, db, producer)

	first := appendPending(t, db, events.TypeOrderCreated)
	// Force distinct created_at values; sqlite timestamps can collide.
	if err := db.Model(&domain.OutboxEvent{}).Where("id = ?", first).
		Update("created_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	appendPending(t, db, events.TypeOrderCreated)

	if _, err := pub.PublishBatch(context.Background()); err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if len(producer.sent) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(producer.sent))
	}
	env, err := events.ParseEnvelope(producer.sent[0].value)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.EventID != first {
		t.Fatal("oldest event must publish first")
	}
}

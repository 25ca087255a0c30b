package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
	"github.com/roi007leaf/pdq-checkout/internal/observability"
)

// Routes maps event types to topics. The mapping is static and one-to-one;
// unmapped types fall back to the publisher's default topic.
type Routes map[string]string

type Config struct {
	Source       string
	Routes       Routes
	DefaultTopic string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
}

// Publisher drains PENDING outbox rows to the broker. One instance per
// service; it is the only component that moves events out of the store.
type Publisher struct {
	db       *gorm.DB
	producer messaging.Producer
	cfg      Config
	logger   *slog.Logger

	disabledLogged bool
}

func NewPublisher(db *gorm.DB, producer messaging.Producer, cfg Config, logger *slog.Logger) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 5 * time.Second
	}
	return &Publisher{
		db:       db,
		producer: producer,
		cfg:      cfg,
		logger:   logger.With("component", "outbox_publisher", "source", cfg.Source),
	}
}

// Run polls until ctx is cancelled. The current batch is finished before the
// loop exits.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	p.logger.Info("outbox publisher started", "interval", p.cfg.PollInterval.String())
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("publish batch failed", "error", err.Error())
			}
		}
	}
}

// PublishBatch pushes up to BatchSize due PENDING events, oldest first.
// Returns the number of events successfully published.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	if !p.producer.Ready() {
		if !p.disabledLogged {
			p.logger.Warn("producer disabled, leaving outbox events pending")
			p.disabledLogged = true
		}
		return 0, nil
	}

	var pending []domain.OutboxEvent
	err := p.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", domain.OutboxStatusPending, time.Now().UTC()).
		Order("created_at ASC").
		Limit(p.cfg.BatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("load pending outbox events: %w", err)
	}

	published := 0
	for i := range pending {
		if err := p.publishEvent(ctx, &pending[i]); err == nil {
			published++
		}
	}
	return published, nil
}

func (p *Publisher) publishEvent(ctx context.Context, event *domain.OutboxEvent) error {
	topic := p.cfg.DefaultTopic
	if t, ok := p.cfg.Routes[event.EventType]; ok {
		topic = t
	}

	value, err := p.buildEnvelope(event)
	if err != nil {
		// Unmarshalable rows would retry forever; park them as FAILED.
		p.markFailure(ctx, event, err)
		return err
	}

	err = p.producer.Publish(ctx, topic, []byte(event.AggregateID), value,
		messaging.Header{Key: "eventType", Value: event.EventType},
		messaging.Header{Key: "eventVersion", Value: strconv.Itoa(event.EventVersion)},
		messaging.Header{Key: "source", Value: p.cfg.Source},
	)
	if err != nil {
		p.markFailure(ctx, event, err)
		observability.RecordOutboxPublish(ctx, p.cfg.Source, "error")
		return err
	}

	now := time.Now().UTC()
	updateErr := p.db.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"status":       domain.OutboxStatusPublished,
			"published_at": &now,
		}).Error
	if updateErr != nil {
		// The event went out but is still PENDING; the next poll re-sends it
		// and consumer-side inbox dedup absorbs the duplicate.
		p.logger.Warn("published but failed to mark event", "event_id", event.ID, "error", updateErr.Error())
		return updateErr
	}

	observability.RecordOutboxPublish(ctx, p.cfg.Source, "published")
	p.logger.Info("published event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"topic", topic,
		"aggregate_id", event.AggregateID,
	)
	return nil
}

func (p *Publisher) buildEnvelope(event *domain.OutboxEvent) ([]byte, error) {
	var headers events.Headers
	if len(event.Headers) > 0 {
		if err := json.Unmarshal(event.Headers, &headers); err != nil {
			return nil, fmt.Errorf("decode outbox headers: %w", err)
		}
	}

	env := events.Envelope{
		SpecVersion:  events.SpecVersion,
		EventID:      event.ID,
		EventType:    event.EventType,
		EventVersion: event.EventVersion,
		Source:       p.cfg.Source,
		OccurredAt:   event.CreatedAt.UTC(),
		Data:         json.RawMessage(event.Payload),
	}
	if headers.CorrelationID != "" {
		env.CorrelationID = &headers.CorrelationID
	}
	return env.Encode()
}

func (p *Publisher) markFailure(ctx context.Context, event *domain.OutboxEvent, cause error) {
	attempts := event.Attempts + 1
	status := domain.OutboxStatusPending
	if attempts >= p.cfg.MaxAttempts {
		status = domain.OutboxStatusFailed
	}
	availableAt := time.Now().UTC().Add(time.Duration(1<<uint(attempts)) * p.cfg.BaseBackoff)

	err := p.db.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"status":       status,
			"attempts":     attempts,
			"available_at": availableAt,
			"last_error":   cause.Error(),
		}).Error
	if err != nil {
		p.logger.Error("failed to record publish failure", "event_id", event.ID, "error", err.Error())
		return
	}

	if status == domain.OutboxStatusFailed {
		observability.RecordOutboxPublish(ctx, p.cfg.Source, "failed_terminal")
		p.logger.Error("event exhausted retries, needs manual intervention",
			"event_id", event.ID,
			"event_type", event.EventType,
			"attempts", attempts,
			"error", cause.Error(),
		)
		return
	}
	p.logger.Warn("publish failed, scheduled retry",
		"event_id", event.ID,
		"attempts", attempts,
		"next_attempt_at", availableAt.Format(time.RFC3339),
		"error", cause.Error(),
	)
}

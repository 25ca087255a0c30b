package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/events"
)

// Append records a domain event inside the caller's open transaction. It
// never touches the broker: if the transaction commits the event is durably
// queued exactly once, if it rolls back the event never existed.
func Append(tx *gorm.DB, aggregateType, aggregateID, eventType string, payload any, headers events.Headers) (string, error) {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	rawHeaders, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("marshal %s headers: %w", eventType, err)
	}

	event := domain.OutboxEvent{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		EventVersion:  1,
		Payload:       rawPayload,
		Headers:       rawHeaders,
		Status:        domain.OutboxStatusPending,
		AvailableAt:   time.Now().UTC(),
	}
	if err := tx.Create(&event).Error; err != nil {
		return "", fmt.Errorf("append outbox event: %w", err)
	}
	return event.ID, nil
}

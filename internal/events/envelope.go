package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const SpecVersion = "1.0"

// Topics, one per saga hop. Routing from event type to topic is static and
// one-to-one.
const (
	TopicCheckoutRequests = "checkout.requests"
	TopicPaymentRequests  = "payment.requests"
	TopicPaymentEvents    = "payment.events"
	TopicOrderEvents      = "order.events"
)

// Event types emitted across the checkout saga.
const (
	TypeCheckoutRequested  = "CheckoutRequested"
	TypeOrderCreated       = "OrderCreated"
	TypePaymentRequested   = "PaymentRequested"
	TypePaymentCompleted   = "PaymentCompleted"
	TypePaymentFailed      = "PaymentFailed"
	TypePaymentRefunded    = "PaymentRefunded"
	TypeOrderConfirmed     = "OrderConfirmed"
	TypeOrderPaymentFailed = "OrderPaymentFailed"
	TypeOrderStatusChanged = "OrderStatusChanged"
)

var ErrEmptyMessage = errors.New("empty message value")

// Envelope is the wire format for every topic. Data is schema-per-eventType;
// consumers decode it with Decode after checking EventType.
type Envelope struct {
	SpecVersion   string          `json:"specVersion"`
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	EventVersion  int             `json:"eventVersion"`
	Source        string          `json:"source"`
	OccurredAt    time.Time       `json:"occurredAt"`
	CorrelationID *string         `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
}

func NewEnvelope(source, eventType string, eventVersion int, correlationID string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s data: %w", eventType, err)
	}
	env := Envelope{
		SpecVersion:  SpecVersion,
		EventID:      uuid.New().String(),
		EventType:    eventType,
		EventVersion: eventVersion,
		Source:       source,
		OccurredAt:   time.Now().UTC(),
		Data:         raw,
	}
	if correlationID != "" {
		env.CorrelationID = &correlationID
	}
	return env, nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (e Envelope) Correlation() string {
	if e.CorrelationID == nil {
		return ""
	}
	return *e.CorrelationID
}

func ParseEnvelope(value []byte) (Envelope, error) {
	if len(value) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	return env, nil
}

// Decode unmarshals the envelope data into the payload type for its event
// type. Validation of payload shape happens here, at the consumption boundary.
func Decode[T any](env Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return payload, nil
}

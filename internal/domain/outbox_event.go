package domain

import "time"

const (
	OutboxStatusPending   = "PENDING"
	OutboxStatusPublished = "PUBLISHED"
	OutboxStatusFailed    = "FAILED"
)

// OutboxEvent is written in the same transaction as the business mutation it
// describes and published asynchronously by the outbox publisher.
type OutboxEvent struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	AggregateType string     `gorm:"size:100;not null" json:"aggregate_type"`
	AggregateID   string     `gorm:"size:36;not null;index" json:"aggregate_id"`
	EventType     string     `gorm:"size:100;not null" json:"event_type"`
	EventVersion  int        `gorm:"not null;default:1" json:"event_version"`
	Payload       []byte     `gorm:"type:jsonb;not null" json:"-"`
	Headers       []byte     `gorm:"type:jsonb" json:"-"`
	Status        string     `gorm:"size:20;not null;index:idx_outbox_pending" json:"status"`
	AvailableAt   time.Time  `gorm:"not null;index:idx_outbox_pending" json:"available_at"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;index:idx_outbox_pending" json:"created_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

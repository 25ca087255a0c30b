package domain

import "time"

const (
	IdempotencyStatusInProgress = "IN_PROGRESS"
	IdempotencyStatusCompleted  = "COMPLETED"
	IdempotencyStatusFailed     = "FAILED"
)

type IdempotencyRecord struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Key          string     `gorm:"size:255;not null;uniqueIndex:ux_idempotency_key_scope" json:"-"`
	Scope        string     `gorm:"size:100;not null;uniqueIndex:ux_idempotency_key_scope" json:"-"`
	RequestHash  string     `gorm:"size:64;not null" json:"-"`
	Status       string     `gorm:"size:20;not null" json:"-"`
	ResponseCode int        `json:"-"`
	ResponseBody []byte     `gorm:"type:jsonb" json:"-"`
	LockedAt     *time.Time `json:"-"`
	ExpiresAt    time.Time  `gorm:"not null;index" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_keys" }

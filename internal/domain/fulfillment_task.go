package domain

import "time"

const (
	FulfillmentStatusPending   = "PENDING"
	FulfillmentStatusCompleted = "COMPLETED"
)

type FulfillmentTask struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string    `gorm:"size:36;not null;uniqueIndex:uniq_fulfillment_order" json:"order_id"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	Payload   []byte    `gorm:"type:jsonb" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (FulfillmentTask) TableName() string { return "fulfillment_tasks" }

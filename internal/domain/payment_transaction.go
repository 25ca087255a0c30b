package domain

import "time"

const (
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)

type PaymentTransaction struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID       string    `gorm:"size:36;not null;index" json:"order_id"`
	Status        string    `gorm:"size:20;not null;index" json:"status"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Currency      string    `gorm:"size:3;not null" json:"currency"`
	TransactionID string    `gorm:"size:200" json:"transaction_id,omitempty"`
	ErrorMessage  string    `gorm:"size:500" json:"error_message,omitempty"`
	ErrorCode     string    `gorm:"size:50" json:"error_code,omitempty"`
	PaymentMethod []byte    `gorm:"type:jsonb" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

package domain

import "time"

const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusConfirmed      = "CONFIRMED"
	OrderStatusPaymentFailed  = "PAYMENT_FAILED"
	OrderStatusProcessing     = "PROCESSING"
	OrderStatusShipped        = "SHIPPED"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
	OrderStatusRefunded       = "REFUNDED"
)

// Order is the aggregate root owned by the orders service. Monetary amounts
// are integer cents.
type Order struct {
	ID                   string           `gorm:"primaryKey;size:36" json:"id"`
	Status               string           `gorm:"size:50;not null;index:idx_order_status;index:idx_order_status_created" json:"status"`
	Currency             string           `gorm:"size:3;not null;default:USD" json:"currency"`
	Subtotal             int64            `gorm:"not null" json:"subtotal"`
	Tax                  int64            `gorm:"not null;default:0" json:"tax"`
	GrandTotal           int64            `gorm:"not null" json:"grand_total"`
	PaymentID            string           `gorm:"size:36;index" json:"payment_id,omitempty"`
	PaymentTransactionID string           `gorm:"size:200" json:"payment_transaction_id,omitempty"`
	Metadata             []byte           `gorm:"type:jsonb" json:"-"`
	Items                []OrderItem      `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	ShippingAddress      *ShippingAddress `gorm:"constraint:OnDelete:CASCADE" json:"shipping_address,omitempty"`
	CreatedAt            time.Time        `gorm:"index:idx_order_status_created" json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	OrderID    string `gorm:"size:36;not null;index" json:"-"`
	ProductID  string `gorm:"size:64;not null" json:"product_id"`
	Name       string `gorm:"size:200;not null" json:"name"`
	Quantity   int    `gorm:"not null" json:"quantity"`
	UnitPrice  int64  `gorm:"not null" json:"unit_price"`
	TotalPrice int64  `gorm:"not null" json:"total_price"`
}

func (OrderItem) TableName() string { return "order_items" }

type ShippingAddress struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	OrderID      string `gorm:"size:36;not null;uniqueIndex" json:"-"`
	FullName     string `gorm:"size:200;not null" json:"full_name"`
	AddressLine1 string `gorm:"size:200;not null" json:"address_line1"`
	AddressLine2 string `gorm:"size:200" json:"address_line2,omitempty"`
	City         string `gorm:"size:100;not null" json:"city"`
	State        string `gorm:"size:100;not null" json:"state"`
	PostalCode   string `gorm:"size:20;not null" json:"postal_code"`
	Country      string `gorm:"size:2;not null" json:"country"`
	Phone        string `gorm:"size:32" json:"phone,omitempty"`
}

func (ShippingAddress) TableName() string { return "shipping_addresses" }

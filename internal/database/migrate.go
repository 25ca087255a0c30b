package database

import (
	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
)

// Each service owns its own database; migrations only cover the tables that
// service writes.

func MigrateGateway(db *gorm.DB) error {
	return db.AutoMigrate(&domain.IdempotencyRecord{})
}

func MigrateOrders(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Order{},
		&domain.OrderItem{},
		&domain.ShippingAddress{},
		&domain.OutboxEvent{},
		&domain.InboxRecord{},
	)
}

func MigratePayment(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.PaymentTransaction{},
		&domain.OutboxEvent{},
		&domain.InboxRecord{},
	)
}

func MigrateFulfillment(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.FulfillmentTask{},
		&domain.InboxRecord{},
	)
}

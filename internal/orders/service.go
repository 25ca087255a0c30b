package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/inbox"
	"github.com/roi007leaf/pdq-checkout/internal/outbox"
)

var ErrOrderNotFound = errors.New("order not found")

// PublisherRoutes routes the orders service's outbox events: payment requests
// go to the payment service's request topic, everything else to order.events.
var PublisherRoutes = outbox.Routes{
	events.TypePaymentRequested:   events.TopicPaymentRequests,
	events.TypeOrderCreated:       events.TopicOrderEvents,
	events.TypeOrderConfirmed:     events.TopicOrderEvents,
	events.TypeOrderPaymentFailed: events.TopicOrderEvents,
	events.TypeOrderStatusChanged: events.TopicOrderEvents,
}

type Delivery struct {
	Topic         string
	Partition     int
	Offset        int64
	CorrelationID string
}

type Service struct {
	db     *gorm.DB
	guard  *inbox.Guard
	logger *slog.Logger
}

func NewService(db *gorm.DB, guard *inbox.Guard, logger *slog.Logger) *Service {
	return &Service{db: db, guard: guard, logger: logger.With("service", "orders")}
}

// CreateOrder handles a CheckoutRequested delivery: one transaction covers
// the inbox record, the order aggregate, and the two outbox events that keep
// the saga moving. Returns false without error on duplicate delivery.
func (s *Service) CreateOrder(ctx context.Context, delivery Delivery, data events.CheckoutOrderData) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.guard.Handle(ctx, tx, delivery.Topic, delivery.Partition, delivery.Offset, func() error {
			metadata, err := json.Marshal(data.Metadata)
			if err != nil {
				return fmt.Errorf("marshal order metadata: %w", err)
			}

			order := domain.Order{
				ID:         data.ID,
				Status:     domain.OrderStatusPendingPayment,
				Currency:   data.Currency,
				Subtotal:   data.Subtotal,
				Tax:        data.Tax,
				GrandTotal: data.GrandTotal,
				Metadata:   metadata,
				ShippingAddress: &domain.ShippingAddress{
					FullName:     data.ShippingAddress.FullName,
					AddressLine1: data.ShippingAddress.AddressLine1,
					AddressLine2: data.ShippingAddress.AddressLine2,
					City:         data.ShippingAddress.City,
					State:        data.ShippingAddress.State,
					PostalCode:   data.ShippingAddress.PostalCode,
					Country:      data.ShippingAddress.Country,
					Phone:        data.ShippingAddress.Phone,
				},
			}
			for _, item := range data.Items {
				order.Items = append(order.Items, domain.OrderItem{
					ProductID:  item.ProductID,
					Name:       item.Name,
					Quantity:   item.Quantity,
					UnitPrice:  item.UnitPrice,
					TotalPrice: item.TotalPrice,
				})
			}
			if err := tx.Create(&order).Error; err != nil {
				return fmt.Errorf("create order: %w", err)
			}

			headers := events.Headers{CorrelationID: delivery.CorrelationID}

			_, err = outbox.Append(tx, "Order", order.ID, events.TypePaymentRequested, events.PaymentRequestedData{
				OrderID:        order.ID,
				PaymentRequest: data.PaymentRequest,
			}, headers)
			if err != nil {
				return err
			}

			_, err = outbox.Append(tx, "Order", order.ID, events.TypeOrderCreated, events.OrderCreatedData{
				OrderID:         order.ID,
				Status:          order.Status,
				Currency:        order.Currency,
				Subtotal:        order.Subtotal,
				Tax:             order.Tax,
				GrandTotal:      order.GrandTotal,
				Items:           data.Items,
				ShippingAddress: data.ShippingAddress,
			}, headers)
			return err
		})
	})
	if errors.Is(err, inbox.ErrAlreadyProcessed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("order created", "order_id", data.ID, "status", domain.OrderStatusPendingPayment)
	return true, nil
}

// HandlePaymentResult transitions the order to its terminal payment state and
// emits the matching order event. An unknown order id is treated as processed
// so the message is not redelivered forever.
func (s *Service) HandlePaymentResult(ctx context.Context, delivery Delivery, data events.PaymentResultData) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.guard.Handle(ctx, tx, delivery.Topic, delivery.Partition, delivery.Offset, func() error {
			var order domain.Order
			err := tx.Where("id = ?", data.OrderID).First(&order).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn("payment result for unknown order", "order_id", data.OrderID, "payment_id", data.PaymentID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("load order: %w", err)
			}

			eventType := events.TypeOrderConfirmed
			if data.Status == domain.PaymentStatusCompleted {
				order.Status = domain.OrderStatusConfirmed
				order.PaymentID = data.PaymentID
				order.PaymentTransactionID = data.TransactionID
			} else {
				order.Status = domain.OrderStatusPaymentFailed
				eventType = events.TypeOrderPaymentFailed
				if merged, mergeErr := mergeMetadata(order.Metadata, map[string]any{
					"paymentError":     data.Error,
					"paymentErrorCode": data.ErrorCode,
				}); mergeErr == nil {
					order.Metadata = merged
				}
			}
			if err := tx.Save(&order).Error; err != nil {
				return fmt.Errorf("update order: %w", err)
			}

			_, err = outbox.Append(tx, "Order", order.ID, eventType, events.OrderResultData{
				OrderID:       order.ID,
				Status:        order.Status,
				PaymentID:     order.PaymentID,
				TransactionID: order.PaymentTransactionID,
				Error:         data.Error,
				ErrorCode:     data.ErrorCode,
			}, events.Headers{CorrelationID: delivery.CorrelationID})
			if err != nil {
				return err
			}

			s.logger.Info("order updated from payment result", "order_id", order.ID, "status", order.Status)
			return nil
		})
	})
	if errors.Is(err, inbox.ErrAlreadyProcessed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateStatus moves an order through its later lifecycle, pairing the write
// with an OrderStatusChanged outbox event.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status, correlationID string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", orderID).First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		previous := order.Status
		order.Status = status
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		_, err = outbox.Append(tx, "Order", order.ID, events.TypeOrderStatusChanged, events.OrderStatusChangedData{
			OrderID:        order.ID,
			PreviousStatus: previous,
			NewStatus:      status,
		}, events.Headers{CorrelationID: correlationID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("ShippingAddress").
		Where("id = ?", orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func mergeMetadata(existing []byte, extra map[string]any) ([]byte, error) {
	merged := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, err
		}
		if merged == nil {
			merged = map[string]any{}
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

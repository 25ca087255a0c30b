package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/inbox"
	"github.com/roi007leaf/pdq-checkout/internal/outbox"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentNotRefundable = errors.New("payment cannot be refunded")
)

// PublisherRoutes: every payment outbox event lands on payment.events.
var PublisherRoutes = outbox.Routes{
	events.TypePaymentCompleted: events.TopicPaymentEvents,
	events.TypePaymentFailed:    events.TopicPaymentEvents,
	events.TypePaymentRefunded:  events.TopicPaymentEvents,
}

type Delivery struct {
	Topic         string
	Partition     int
	Offset        int64
	CorrelationID string
}

type Result struct {
	Success       bool
	PaymentID     string
	TransactionID string
	Error         string
	ErrorCode     string
}

type Service struct {
	db      *gorm.DB
	guard   *inbox.Guard
	gateway Gateway
	logger  *slog.Logger
}

func NewService(db *gorm.DB, guard *inbox.Guard, gateway Gateway, logger *slog.Logger) *Service {
	return &Service{db: db, guard: guard, gateway: gateway, logger: logger.With("service", "payment")}
}

// ProcessPayment charges the card and persists the transaction plus its
// outcome event atomically with the inbox record. A declined card is a
// normal terminal outcome (PaymentFailed event), not an error. On duplicate
// delivery the previously stored result is returned.
func (s *Service) ProcessPayment(ctx context.Context, delivery Delivery, orderID string, req events.PaymentRequestData) (bool, *Result, error) {
	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.guard.Handle(ctx, tx, delivery.Topic, delivery.Partition, delivery.Offset, func() error {
			gwResult, err := s.gateway.Charge(ctx, req)
			if err != nil {
				return fmt.Errorf("payment gateway: %w", err)
			}

			paymentID := uuid.New().String()
			status := domain.PaymentStatusFailed
			if gwResult.Success {
				status = domain.PaymentStatusCompleted
			}

			last4 := req.CardNumber
			if len(last4) > 4 {
				last4 = last4[len(last4)-4:]
			}
			method, err := json.Marshal(map[string]string{"type": "card", "last4": last4})
			if err != nil {
				return fmt.Errorf("marshal payment method: %w", err)
			}

			txn := domain.PaymentTransaction{
				ID:            paymentID,
				OrderID:       orderID,
				Status:        status,
				Amount:        req.Amount,
				Currency:      req.Currency,
				TransactionID: gwResult.TransactionID,
				ErrorMessage:  gwResult.Error,
				ErrorCode:     gwResult.ErrorCode,
				PaymentMethod: method,
			}
			if err := tx.Create(&txn).Error; err != nil {
				return fmt.Errorf("create payment transaction: %w", err)
			}

			eventType := events.TypePaymentFailed
			if gwResult.Success {
				eventType = events.TypePaymentCompleted
			}
			_, err = outbox.Append(tx, "Payment", paymentID, eventType, events.PaymentResultData{
				PaymentID:     paymentID,
				OrderID:       orderID,
				Status:        status,
				Amount:        txn.Amount,
				Currency:      txn.Currency,
				TransactionID: txn.TransactionID,
				Error:         txn.ErrorMessage,
				ErrorCode:     txn.ErrorCode,
			}, events.Headers{CorrelationID: delivery.CorrelationID})
			if err != nil {
				return err
			}

			result = &Result{
				Success:       gwResult.Success,
				PaymentID:     paymentID,
				TransactionID: gwResult.TransactionID,
				Error:         gwResult.Error,
				ErrorCode:     gwResult.ErrorCode,
			}
			s.logger.Info("payment processed", "payment_id", paymentID, "order_id", orderID, "event", eventType)
			return nil
		})
	})
	if errors.Is(err, inbox.ErrAlreadyProcessed) {
		existing, findErr := s.GetByOrderID(ctx, orderID)
		if findErr == nil {
			return false, &Result{
				Success:       existing.Status == domain.PaymentStatusCompleted,
				PaymentID:     existing.ID,
				TransactionID: existing.TransactionID,
				Error:         existing.ErrorMessage,
				ErrorCode:     existing.ErrorCode,
			}, nil
		}
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, result, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentTransaction, error) {
	var txn domain.PaymentTransaction
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Refund flips a completed payment to REFUNDED and emits PaymentRefunded.
func (s *Service) Refund(ctx context.Context, paymentID, correlationID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn domain.PaymentTransaction
		err := tx.Where("id = ?", paymentID).First(&txn).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if txn.Status != domain.PaymentStatusCompleted {
			return ErrPaymentNotRefundable
		}

		txn.Status = domain.PaymentStatusRefunded
		if err := tx.Save(&txn).Error; err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		_, err = outbox.Append(tx, "Payment", txn.ID, events.TypePaymentRefunded, events.PaymentRefundedData{
			PaymentID: txn.ID,
			OrderID:   txn.OrderID,
			Amount:    txn.Amount,
			Currency:  txn.Currency,
		}, events.Headers{CorrelationID: correlationID})
		return err
	})
}

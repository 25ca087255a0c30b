package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/inbox"
)

type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
}

type Service struct {
	db     *gorm.DB
	guard  *inbox.Guard
	logger *slog.Logger
}

func NewService(db *gorm.DB, guard *inbox.Guard, logger *slog.Logger) *Service {
	return &Service{db: db, guard: guard, logger: logger.With("service", "fulfillment")}
}

// HandleOrderCreated opens a PENDING fulfillment task for the order. Both the
// inbox record and the unique order id index guard against duplicates: a
// redelivered message or a second OrderCreated for the same order is treated
// as already handled.
func (s *Service) HandleOrderCreated(ctx context.Context, delivery Delivery, orderID string, payload []byte) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.guard.Handle(ctx, tx, delivery.Topic, delivery.Partition, delivery.Offset, func() error {
			task := domain.FulfillmentTask{
				ID:      uuid.New().String(),
				OrderID: orderID,
				Status:  domain.FulfillmentStatusPending,
				Payload: payload,
			}
			if err := tx.Create(&task).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					s.logger.Warn("fulfillment task already exists", "order_id", orderID)
					return nil
				}
				return fmt.Errorf("create fulfillment task: %w", err)
			}
			s.logger.Info("fulfillment task created", "order_id", orderID, "task_id", task.ID)
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

func (s *Service) GetTaskByOrderID(ctx context.Context, orderID string) (*domain.FulfillmentTask, error) {
	var task domain.FulfillmentTask
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

package inbox

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/observability"
)

// ErrAlreadyProcessed reports a duplicate broker delivery. It is a normal
// outcome, not a failure: callers skip the business work and ack the message.
var ErrAlreadyProcessed = errors.New("message already processed")

type Guard struct {
	group string
}

func NewGuard(consumerGroup string) *Guard {
	return &Guard{group: consumerGroup}
}

// Handle inserts the inbox record for this delivery and then runs fn inside
// the same transaction. The insert must come first: its unique constraint is
// the dedup gate, and pairing it with fn's writes in one transaction means a
// crash can never separate proof-of-processing from the side effect.
func (g *Guard) Handle(ctx context.Context, tx *gorm.DB, topic string, partition int, offset int64, fn func() error) error {
	record := domain.InboxRecord{
		ConsumerGroup: g.group,
		Topic:         topic,
		Partition:     partition,
		Offset:        offset,
	}
	if err := tx.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordInboxMessage(ctx, g.group, "duplicate")
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("insert inbox record: %w", err)
	}

	if err := fn(); err != nil {
		observability.RecordInboxMessage(ctx, g.group, "error")
		return err
	}
	observability.RecordInboxMessage(ctx, g.group, "processed")
	return nil
}

package payment

import (
	"context"

	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
)

// HandlePaymentRequestMessage consumes payment.requests. Malformed messages
// are skipped rather than retried; handler errors leave the offset
// uncommitted so the broker redelivers.
func (s *Service) HandlePaymentRequestMessage(ctx context.Context, msg messaging.Message) error {
	env, err := events.ParseEnvelope(msg.Value)
	if err != nil {
		s.logger.Warn("skipping unparsable payment request", "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		return nil
	}
	if env.EventType != events.TypePaymentRequested {
		return nil
	}

	data, err := events.Decode[events.PaymentRequestedData](env)
	if err != nil || data.OrderID == "" {
		s.logger.Warn("skipping malformed PaymentRequested payload", "offset", msg.Offset)
		return nil
	}

	processed, _, err := s.ProcessPayment(ctx, Delivery{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		CorrelationID: env.Correlation(),
	}, data.OrderID, data.PaymentRequest)
	if err != nil {
		return err
	}
	if !processed {
		s.logger.Info("duplicate payment request skipped", "order_id", data.OrderID, "offset", msg.Offset)
	}
	return nil
}

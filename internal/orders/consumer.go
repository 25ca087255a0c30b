package orders

import (
	"context"

	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
)

// HandleCheckoutMessage consumes checkout.requests. Messages that are not
// well-formed CheckoutRequested envelopes are skipped (and committed), not
// retried: redelivery cannot fix a malformed message.
func (s *Service) HandleCheckoutMessage(ctx context.Context, msg messaging.Message) error {
	env, err := events.ParseEnvelope(msg.Value)
	if err != nil {
		s.logger.Warn("skipping unparsable checkout message", "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		return nil
	}
	if env.EventType != events.TypeCheckoutRequested {
		return nil
	}

	data, err := events.Decode[events.CheckoutRequestedData](env)
	if err != nil || data.Order.ID == "" {
		s.logger.Warn("skipping malformed CheckoutRequested payload", "offset", msg.Offset)
		return nil
	}

	processed, err := s.CreateOrder(ctx, Delivery{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		CorrelationID: env.Correlation(),
	}, data.Order)
	if err != nil {
		return err
	}
	if !processed {
		s.logger.Info("duplicate checkout request skipped", "order_id", data.Order.ID, "offset", msg.Offset)
	}
	return nil
}

// HandlePaymentEventMessage consumes payment.events and applies terminal
// payment outcomes to the order.
func (s *Service) HandlePaymentEventMessage(ctx context.Context, msg messaging.Message) error {
	env, err := events.ParseEnvelope(msg.Value)
	if err != nil {
		s.logger.Warn("skipping unparsable payment event", "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		return nil
	}
	if env.EventType != events.TypePaymentCompleted && env.EventType != events.TypePaymentFailed {
		return nil
	}

	data, err := events.Decode[events.PaymentResultData](env)
	if err != nil || data.OrderID == "" {
		s.logger.Warn("skipping malformed payment result payload", "offset", msg.Offset)
		return nil
	}

	processed, err := s.HandlePaymentResult(ctx, Delivery{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		CorrelationID: env.Correlation(),
	}, data)
	if err != nil {
		return err
	}
	if !processed {
		s.logger.Info("duplicate payment result skipped", "order_id", data.OrderID, "offset", msg.Offset)
	}
	return nil
}

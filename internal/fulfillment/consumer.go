package fulfillment

import (
	"context"

	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
)

// HandleOrderEventMessage consumes order.events. The eventType message header
// lets us drop everything but OrderCreated without deserializing the body.
func (s *Service) HandleOrderEventMessage(ctx context.Context, msg messaging.Message) error {
	if t := msg.HeaderValue("eventType"); t != "" && t != events.TypeOrderCreated {
		return nil
	}

	env, err := events.ParseEnvelope(msg.Value)
	if err != nil {
		s.logger.Warn("skipping unparsable order event", "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		return nil
	}
	if env.EventType != events.TypeOrderCreated {
		return nil
	}

	data, err := events.Decode[events.OrderCreatedData](env)
	if err != nil || data.OrderID == "" {
		s.logger.Warn("skipping malformed OrderCreated payload", "offset", msg.Offset)
		return nil
	}

	processed, err := s.HandleOrderCreated(ctx, Delivery{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}, data.OrderID, env.Data)
	if err != nil {
		return err
	}
	if !processed {
		s.logger.Info("duplicate order event skipped", "order_id", data.OrderID, "offset", msg.Offset)
	}
	return nil
}

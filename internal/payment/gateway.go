package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/roi007leaf/pdq-checkout/internal/events"
)

type GatewayResult struct {
	Success       bool
	TransactionID string
	Error         string
	ErrorCode     string
}

// Gateway abstracts the external payment processor.
type Gateway interface {
	Charge(ctx context.Context, req events.PaymentRequestData) (GatewayResult, error)
}

// MockGateway simulates a card processor. Outcomes are keyed off the last
// four digits of the card number so test scenarios are reproducible:
// 0000 declines, 1111 is an invalid card, 9999 is a gateway outage, anything
// else succeeds.
type MockGateway struct {
	Delay time.Duration
}

func NewMockGateway() *MockGateway {
	return &MockGateway{Delay: 100 * time.Millisecond}
}

func (g *MockGateway) Charge(ctx context.Context, req events.PaymentRequestData) (GatewayResult, error) {
	if g.Delay > 0 {
		select {
		case <-ctx.Done():
			return GatewayResult{}, ctx.Err()
		case <-time.After(g.Delay):
		}
	}

	last4 := req.CardNumber
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}

	switch last4 {
	case "0000":
		return GatewayResult{Error: "Insufficient funds", ErrorCode: "INSUFFICIENT_FUNDS"}, nil
	case "1111":
		return GatewayResult{Error: "Invalid card", ErrorCode: "INVALID_CARD"}, nil
	case "9999":
		return GatewayResult{Error: "Payment gateway temporarily unavailable", ErrorCode: "GATEWAY_ERROR"}, nil
	}

	return GatewayResult{
		Success:       true,
		TransactionID: fmt.Sprintf("txn_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000)),
	}, nil
}

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
	"github.com/roi007leaf/pdq-checkout/internal/events"
	"github.com/roi007leaf/pdq-checkout/internal/http/response"
	"github.com/roi007leaf/pdq-checkout/internal/idempotency"
	"github.com/roi007leaf/pdq-checkout/internal/messaging"
	"github.com/roi007leaf/pdq-checkout/internal/observability"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "X-Idempotency-Replayed"

	checkoutScope = "POST:/api/v1/checkout/payment"
	eventSource   = "api-gateway"
)

type CheckoutResponse struct {
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	GrandTotal int64     `json:"grandTotal"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"createdAt"`
	Replayed   bool      `json:"replayed,omitempty"`
}

type CheckoutHandler struct {
	store    idempotency.Store
	producer messaging.Producer
	cart     *CartService
	logger   *slog.Logger
}

func NewCheckoutHandler(store idempotency.Store, producer messaging.Producer, cart *CartService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{store: store, producer: producer, cart: cart, logger: logger.With("handler", "checkout")}
}

// ProcessPayment serves POST /api/v1/checkout/payment. The idempotency store
// is the only thing standing between a client retry and a second order, so
// every exit path below settles the (key, scope) record.
func (h *CheckoutHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		response.Error(w, r, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY",
			"the Idempotency-Key header is required for this operation", nil)
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if problems := req.Validate(time.Now().UTC()); len(problems) > 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "checkout validation failed", problems)
		return
	}

	ctx := r.Context()
	check, err := h.store.CheckOrCreate(ctx, key, checkoutScope, req)
	if err != nil {
		if errors.Is(err, idempotency.ErrConflict) {
			observability.RecordIdempotencyCheck(ctx, checkoutScope, "conflict")
			response.Error(w, r, http.StatusConflict, "IDEMPOTENCY_CONFLICT",
				"this idempotency key was already used with a different payload", nil)
			return
		}
		h.logger.Error("idempotency check failed", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "idempotency check failed", nil)
		return
	}

	if check.Status == domain.IdempotencyStatusCompleted {
		observability.RecordIdempotencyCheck(ctx, checkoutScope, "replay")
		var stored CheckoutResponse
		if err := json.Unmarshal(check.ResponseBody, &stored); err != nil {
			h.logger.Error("stored idempotent response is unreadable", "error", err.Error())
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "stored response unreadable", nil)
			return
		}
		stored.Replayed = true
		w.Header().Set(ReplayedHeader, "true")
		response.JSON(w, r, check.ResponseCode, stored)
		return
	}

	if !check.IsNew {
		observability.RecordIdempotencyCheck(ctx, checkoutScope, "in_progress")
		response.Error(w, r, http.StatusConflict, "REQUEST_IN_PROGRESS",
			"this request is already being processed", nil)
		return
	}
	observability.RecordIdempotencyCheck(ctx, checkoutScope, "new")

	if !h.producer.Ready() {
		h.failAndRespond(w, r, key, http.StatusServiceUnavailable, "BROKER_UNAVAILABLE",
			"messaging service unavailable, please try again later")
		return
	}

	cart := h.cart.GetCart()
	orderID := uuid.New().String()
	correlationID := CorrelationID(ctx)

	payload := events.CheckoutRequestedData{
		Order: events.CheckoutOrderData{
			ID:         orderID,
			Currency:   cart.Currency,
			Subtotal:   cart.Subtotal,
			Tax:        cart.Tax,
			GrandTotal: cart.GrandTotal,
			Items:      cart.Items,
			ShippingAddress: events.ShippingAddressData{
				FullName:     req.ShippingAddress.FullName,
				AddressLine1: req.ShippingAddress.AddressLine1,
				AddressLine2: req.ShippingAddress.AddressLine2,
				City:         req.ShippingAddress.City,
				State:        req.ShippingAddress.State,
				PostalCode:   req.ShippingAddress.PostalCode,
				Country:      strings.ToUpper(strings.TrimSpace(req.ShippingAddress.Country)),
				Phone:        req.ShippingAddress.Phone,
			},
			PaymentRequest: events.PaymentRequestData{
				Amount:         cart.GrandTotal,
				Currency:       cart.Currency,
				CardNumber:     strings.ReplaceAll(req.PaymentDetails.CardNumber, " ", ""),
				ExpiryDate:     req.PaymentDetails.ExpiryDate,
				CVV:            req.PaymentDetails.CVV,
				CardholderName: req.PaymentDetails.CardholderName,
			},
			Metadata: map[string]any{
				"source":        defaultString(req.Metadata, "web"),
				"correlationId": correlationID,
			},
		},
	}

	env, err := events.NewEnvelope(eventSource, events.TypeCheckoutRequested, 1, correlationID, payload)
	if err != nil {
		h.failAndRespond(w, r, key, http.StatusInternalServerError, "INTERNAL", "failed to build checkout event")
		return
	}
	value, err := env.Encode()
	if err != nil {
		h.failAndRespond(w, r, key, http.StatusInternalServerError, "INTERNAL", "failed to encode checkout event")
		return
	}

	err = h.producer.Publish(ctx, events.TopicCheckoutRequests, []byte(orderID), value,
		messaging.Header{Key: "eventType", Value: events.TypeCheckoutRequested},
		messaging.Header{Key: "source", Value: eventSource},
	)
	if err != nil {
		h.logger.Error("failed to publish checkout request", "order_id", orderID, "error", err.Error())
		h.failAndRespond(w, r, key, http.StatusServiceUnavailable, "BROKER_UNAVAILABLE",
			"messaging service unavailable, please try again later")
		return
	}

	result := CheckoutResponse{
		OrderID:    orderID,
		Status:     domain.OrderStatusPendingPayment,
		Message:    "Your order has been received and is being processed. Use the orderId to check status.",
		GrandTotal: cart.GrandTotal,
		Currency:   cart.Currency,
		CreatedAt:  time.Now().UTC(),
	}

	body, err := json.Marshal(result)
	if err == nil {
		if err := h.store.MarkCompleted(ctx, key, checkoutScope, http.StatusCreated, body); err != nil {
			h.logger.Warn("failed to store idempotent response", "key", key, "error", err.Error())
		}
	}

	h.logger.Info("checkout request published", "order_id", orderID, "correlation_id", correlationID)
	response.JSON(w, r, http.StatusCreated, result)
}

// ValidateShipping serves POST /api/v1/checkout/shipping.
func (h *CheckoutHandler) ValidateShipping(w http.ResponseWriter, r *http.Request) {
	var addr ShippingAddressInput
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if problems := addr.Validate(); len(problems) > 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "shipping address validation failed", problems)
		return
	}
	addr.Country = strings.ToUpper(strings.TrimSpace(addr.Country))
	response.JSON(w, r, http.StatusOK, map[string]any{"valid": true, "address": addr})
}

func (h *CheckoutHandler) failAndRespond(w http.ResponseWriter, r *http.Request, key string, status int, code, message string) {
	if err := h.store.MarkFailed(r.Context(), key, checkoutScope); err != nil {
		h.logger.Warn("failed to mark idempotency record failed", "key", key, "error", err.Error())
	}
	response.Error(w, r, status, code, message, nil)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

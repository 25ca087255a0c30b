package events

// Headers travel inside the outbox row and carry causal context from the
// producing request to downstream consumers.
type Headers struct {
	CorrelationID string `json:"correlationId,omitempty"`
}

type OrderItemData struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"`
	TotalPrice int64  `json:"totalPrice"`
}

type ShippingAddressData struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type PaymentRequestData struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	CardNumber     string `json:"cardNumber"`
	ExpiryDate     string `json:"expiryDate"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholderName"`
}

// CheckoutOrderData is the full order the gateway hands to the orders service.
type CheckoutOrderData struct {
	ID              string              `json:"id"`
	Currency        string              `json:"currency"`
	Subtotal        int64               `json:"subtotal"`
	Tax             int64               `json:"tax"`
	GrandTotal      int64               `json:"grandTotal"`
	Items           []OrderItemData     `json:"items"`
	ShippingAddress ShippingAddressData `json:"shippingAddress"`
	PaymentRequest  PaymentRequestData  `json:"paymentRequest"`
	Metadata        map[string]any      `json:"metadata,omitempty"`
}

type CheckoutRequestedData struct {
	Order CheckoutOrderData `json:"order"`
}

type PaymentRequestedData struct {
	OrderID        string             `json:"orderId"`
	PaymentRequest PaymentRequestData `json:"paymentRequest"`
}

type OrderCreatedData struct {
	OrderID         string              `json:"orderId"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	Subtotal        int64               `json:"subtotal"`
	Tax             int64               `json:"tax"`
	GrandTotal      int64               `json:"grandTotal"`
	Items           []OrderItemData     `json:"items"`
	ShippingAddress ShippingAddressData `json:"shippingAddress"`
}

// PaymentResultData is shared by PaymentCompleted and PaymentFailed.
type PaymentResultData struct {
	PaymentID     string `json:"paymentId"`
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"errorCode,omitempty"`
}

// OrderResultData is shared by OrderConfirmed and OrderPaymentFailed.
type OrderResultData struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	PaymentID     string `json:"paymentId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"errorCode,omitempty"`
}

type OrderStatusChangedData struct {
	OrderID        string `json:"orderId"`
	PreviousStatus string `json:"previousStatus"`
	NewStatus      string `json:"newStatus"`
}

type PaymentRefundedData struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

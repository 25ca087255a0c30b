package gateway

import "github.com/roi007leaf/pdq-checkout/internal/events"

// Cart contents are fixed mock data; a real cart service sits outside this
// system. Amounts are integer cents.
type Cart struct {
	Items      []events.OrderItemData `json:"items"`
	Currency   string                 `json:"currency"`
	Subtotal   int64                  `json:"subtotal"`
	Tax        int64                  `json:"tax"`
	GrandTotal int64                  `json:"grand_total"`
}

var mockCartItems = []events.OrderItemData{
	{ProductID: "WIDGET-001", Name: "Premium Widget", UnitPrice: 2999, Quantity: 2, TotalPrice: 5998},
	{ProductID: "GADGET-002", Name: "Super Gadget", UnitPrice: 4999, Quantity: 1, TotalPrice: 4999},
	{ProductID: "CABLE-003", Name: "USB-C Cable", UnitPrice: 999, Quantity: 3, TotalPrice: 2997},
}

type CartService struct{}

func NewCartService() *CartService { return &CartService{} }

func (c *CartService) GetCart() Cart {
	items := mockCartItems
	var subtotal int64
	for _, item := range items {
		subtotal += item.TotalPrice
	}
	var tax int64 // tax calculation is out of scope
	return Cart{
		Items:      items,
		Currency:   "USD",
		Subtotal:   subtotal,
		Tax:        tax,
		GrandTotal: subtotal + tax,
	}
}

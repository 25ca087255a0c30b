package gateway

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	cardNumberRe = regexp.MustCompile(`^\d{13,19}$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
	expiryRe     = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
	countryRe    = regexp.MustCompile(`^[A-Z]{2}$`)
)

type ShippingAddressInput struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
}

type PaymentDetailsInput struct {
	CardNumber     string `json:"cardNumber"`
	ExpiryDate     string `json:"expiryDate"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholderName"`
}

type CheckoutRequest struct {
	ShippingAddress ShippingAddressInput `json:"shippingAddress"`
	PaymentDetails  PaymentDetailsInput  `json:"paymentDetails"`
	Metadata        string               `json:"metadata,omitempty"`
}

func (a ShippingAddressInput) Validate() map[string]string {
	problems := map[string]string{}
	if strings.TrimSpace(a.FullName) == "" {
		problems["fullName"] = "full name is required"
	}
	if strings.TrimSpace(a.AddressLine1) == "" {
		problems["addressLine1"] = "address line is required"
	}
	if strings.TrimSpace(a.City) == "" {
		problems["city"] = "city is required"
	}
	if strings.TrimSpace(a.State) == "" {
		problems["state"] = "state is required"
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		problems["postalCode"] = "postal code is required"
	}
	if !countryRe.MatchString(strings.ToUpper(strings.TrimSpace(a.Country))) {
		problems["country"] = "country must be a two-letter ISO code"
	}
	return problems
}

func (p PaymentDetailsInput) Validate(now time.Time) map[string]string {
	problems := map[string]string{}
	digits := strings.ReplaceAll(strings.TrimSpace(p.CardNumber), " ", "")
	switch {
	case !cardNumberRe.MatchString(digits):
		problems["cardNumber"] = "card number must be 13-19 digits"
	case !luhnValid(digits):
		problems["cardNumber"] = "card number failed checksum"
	}
	if !cvvRe.MatchString(strings.TrimSpace(p.CVV)) {
		problems["cvv"] = "cvv must be 3 or 4 digits"
	}
	if strings.TrimSpace(p.CardholderName) == "" {
		problems["cardholderName"] = "cardholder name is required"
	}
	if m := expiryRe.FindStringSubmatch(strings.TrimSpace(p.ExpiryDate)); m == nil {
		problems["expiryDate"] = "expiry must be MM/YY"
	} else {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		expiry := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
		if !expiry.After(now) {
			problems["expiryDate"] = "card is expired"
		}
	}
	return problems
}

func (r CheckoutRequest) Validate(now time.Time) map[string]string {
	problems := r.ShippingAddress.Validate()
	for k, v := range r.PaymentDetails.Validate(now) {
		problems["paymentDetails."+k] = v
	}
	return problems
}

// luhnValid implements the standard mod-10 card checksum. The mock test card
// numbers (…4242, …0000 and friends) are all valid Luhn numbers.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

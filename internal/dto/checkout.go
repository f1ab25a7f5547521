package dto

import (
	"time"

	"storefront/internal/domain"
	"storefront/internal/identity"
)

type CheckoutRequest struct {
	// OrderID resumes payment for an existing order instead of creating one.
	OrderID  string          `json:"orderId,omitempty"`
	Shipping ShippingRequest `json:"shipping"`
}

type ShippingRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

type CheckoutInput struct {
	Principal identity.Principal
	OrderID   string
	Shipping  domain.ShippingAddress
	Contact   domain.ContactInfo
}

type CheckoutResult struct {
	OrderID    string
	PaymentURL string
	Reference  string
	Currency   string
	Breakdown  domain.Breakdown
	// Resumed is true when an in-flight session was handed back unchanged.
	Resumed bool
	Attempt int
}

type BreakdownDTO struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

func NewBreakdownDTO(b domain.Breakdown) BreakdownDTO {
	return BreakdownDTO{
		Subtotal: domain.FormatAmount(b.Subtotal),
		Shipping: domain.FormatAmount(b.Shipping),
		Tax:      domain.FormatAmount(b.Tax),
		Total:    domain.FormatAmount(b.Total),
	}
}

type CheckoutResponse struct {
	TraceID    string       `json:"traceId"`
	OrderID    string       `json:"orderId"`
	PaymentURL string       `json:"paymentUrl"`
	Currency   string       `json:"currency"`
	Breakdown  BreakdownDTO `json:"breakdown"`
	Resumed    bool         `json:"resumed"`
	Attempt    int          `json:"attempt"`
	Timestamp  time.Time    `json:"timestamp"`
}

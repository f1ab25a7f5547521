// Package gateway talks to the hosted payment page provider and normalizes
// its answers. Every result that leaves this package carries a Status from
// the closed set below; provider codes never travel further.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAuthorized Status = "authorized"
	StatusDeclined   Status = "declined"
	StatusCancelled  Status = "cancelled"
	StatusHeld       Status = "held"
	// StatusUnknown is never final: the caller verifies again later.
	StatusUnknown Status = "unknown"
)

// NormalizeStatusCode maps provider order status codes one to one.
func NormalizeStatusCode(code string) Status {
	switch code {
	case "A":
		return StatusAuthorized
	case "D":
		return StatusDeclined
	case "C":
		return StatusCancelled
	case "H":
		return StatusHeld
	default:
		return StatusUnknown
	}
}

type Customer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// ReturnURLs are the browser destinations for each outcome.
type ReturnURLs struct {
	Authorised string
	Declined   string
	Cancelled  string
}

type SessionRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Customer    Customer
	Return      ReturnURLs
}

type Session struct {
	URL       string
	Reference string
}

type VerifyRequest struct {
	OrderID   string
	Reference string
}

type Verification struct {
	Reference     string
	Status        Status
	RawCode       string
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	CardLast4     string
	CardType      string
}

type RefundRequest struct {
	OrderID   string
	Reference string
	// Amount is nil for a full refund.
	Amount *decimal.Decimal
}

type Refund struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
}

type Client interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	Verify(ctx context.Context, req VerifyRequest) (*Verification, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
}

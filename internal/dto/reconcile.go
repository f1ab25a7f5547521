package dto

import (
	"time"

	"storefront/internal/domain"
)

// Source names the route that delivered a payment notification.
type Source string

const (
	SourceSuccess   Source = "success"
	SourceDeclined  Source = "declined"
	SourceCancelled Source = "cancelled"
	SourceCallback  Source = "callback"
	SourceSweep     Source = "sweep"
)

type Intent string

const (
	// IntentRetry leaves a failed order pending so the customer can pay again.
	IntentRetry Intent = "retry"
	// IntentAbandon cancels the order when the attempt failed.
	IntentAbandon Intent = "abandon"
)

// Notification is an untrusted hint that something happened to an order's
// payment. Reference is only compared against the stored one.
type Notification struct {
	OrderID   string
	Reference string
	Source    Source
	Intent    Intent
	TraceID   string
}

type Outcome string

const (
	OutcomeConfirmed     Outcome = "confirmed"
	OutcomeDeclined      Outcome = "declined"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomePendingReview Outcome = "pending_review"
	// OutcomeVerifying means another worker is verifying the same order.
	OutcomeVerifying Outcome = "verifying"
)

type ReconcileResult struct {
	OrderID       string
	Outcome       Outcome
	OrderStatus   domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	TransactionID string
	// Replayed is true when this call changed nothing because the order had
	// already converged.
	Replayed bool
}

// OutcomeForStatus maps a stored payment status to the outcome reported
// to callers.
func OutcomeForStatus(status domain.PaymentStatus) Outcome {
	switch status {
	case domain.PaymentStatusAuthorized:
		return OutcomeConfirmed
	case domain.PaymentStatusDeclined:
		return OutcomeDeclined
	case domain.PaymentStatusCancelled:
		return OutcomeCancelled
	case domain.PaymentStatusHeld:
		return OutcomePendingReview
	case domain.PaymentStatusPending:
		return OutcomeVerifying
	default:
		return OutcomeVerifying
	}
}

type PaymentResultResponse struct {
	TraceID       string    `json:"traceId"`
	OrderID       string    `json:"orderId"`
	Outcome       string    `json:"outcome"`
	OrderStatus   string    `json:"orderStatus"`
	PaymentStatus string    `json:"paymentStatus"`
	TransactionID string    `json:"transactionId,omitempty"`
	Replayed      bool      `json:"replayed"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

type CallbackRequest struct {
	CartID  string `json:"cartid"`
	OrderID string `json:"orderId"`
	Ref     string `json:"ref"`
	Intent  string `json:"intent"`
}

type SweepRequest struct {
	// Statuses defaults to held and pending.
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit"`
}

type SweepResult struct {
	Examined  int
	Confirmed int
	Failed    int
	Pending   int
	Errors    int
}

type SweepResponse struct {
	TraceID   string    `json:"traceId"`
	Examined  int       `json:"examined"`
	Confirmed int       `json:"confirmed"`
	Failed    int       `json:"failed"`
	Pending   int       `json:"pending"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

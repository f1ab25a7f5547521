package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusDeclined   PaymentStatus = "declined"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusHeld       PaymentStatus = "held"
)

// IsTerminal reports whether no automatic transition leaves s for the
// current payment attempt.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusAuthorized, PaymentStatusDeclined, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo encodes the per-attempt state machine. Staying in the same
// state is not a transition.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusAuthorized ||
			next == PaymentStatusDeclined ||
			next == PaymentStatusCancelled ||
			next == PaymentStatusHeld
	case PaymentStatusHeld:
		return next == PaymentStatusAuthorized ||
			next == PaymentStatusDeclined ||
			next == PaymentStatusCancelled
	default:
		return false
	}
}

// Supersedable reports whether a new payment attempt may replace the stored
// gateway reference.
func (s PaymentStatus) Supersedable() bool {
	return s == PaymentStatusDeclined || s == PaymentStatusCancelled
}

// PaymentTransition is a conditional write: it applies only while the order
// still carries ExpectedReference and a payment status listed in From.
type PaymentTransition struct {
	OrderID           string
	ExpectedReference string
	From              []PaymentStatus
	ToPayment         PaymentStatus
	ToOrder           OrderStatus
	TransactionID     *string
	At                time.Time
}

// NewPaymentTransition derives the allowed source states from the state
// machine so callers cannot build a regressing write.
func NewPaymentTransition(orderID, reference string, to PaymentStatus, toOrder OrderStatus, at time.Time) PaymentTransition {
	var from []PaymentStatus
	for _, candidate := range []PaymentStatus{PaymentStatusPending, PaymentStatusHeld} {
		if candidate.CanTransitionTo(to) {
			from = append(from, candidate)
		}
	}
	return PaymentTransition{
		OrderID:           orderID,
		ExpectedReference: reference,
		From:              from,
		ToPayment:         to,
		ToOrder:           toOrder,
		At:                at,
	}
}

// SessionAttachment records a payment session on an order. It applies only
// while the stored reference equals ExpectedReference (nil meaning none yet)
// and the payment status is one of From.
type SessionAttachment struct {
	OrderID           string
	ExpectedReference *string
	From              []PaymentStatus
	Reference         string
	SessionURL        string
	At                time.Time
}

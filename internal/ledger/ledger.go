// Package ledger records every normalized gateway answer and refund for an
// order. Rows are append-only; the order row stays the source of truth for
// current state and the ledger explains how it got there.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindVerification   Kind = "VERIFICATION"
	KindTransition     Kind = "TRANSITION"
	KindRefund         Kind = "REFUND"
	KindPersistFailure Kind = "PERSIST_FAILURE"
)

type Entry struct {
	OrderID       string
	Reference     string
	Kind          Kind
	Status        string
	RawCode       string
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	// Source is the route that triggered the entry (success, declined,
	// cancelled, callback, sweep, refund).
	Source     string
	TraceID    string
	Detail     string
	RecordedAt time.Time
}

type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	ListByOrder(ctx context.Context, orderID string) ([]Entry, error)
}

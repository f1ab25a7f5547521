package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/ledger"
)

type OrderItemDTO struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type OrderResponse struct {
	TraceID        string         `json:"traceId"`
	OrderID        string         `json:"orderId"`
	Guest          bool           `json:"guest"`
	Status         string         `json:"status"`
	PaymentStatus  string         `json:"paymentStatus"`
	Currency       string         `json:"currency"`
	Breakdown      BreakdownDTO   `json:"breakdown"`
	Items          []OrderItemDTO `json:"items"`
	PaymentAttempt int            `json:"paymentAttempt"`
	TransactionID  string         `json:"transactionId,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func NewOrderResponse(traceID string, o *domain.Order) OrderResponse {
	items := make([]OrderItemDTO, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: domain.FormatAmount(item.UnitPrice),
			LineTotal: domain.FormatAmount(item.LineTotal()),
		}
	}

	resp := OrderResponse{
		TraceID:        traceID,
		OrderID:        o.ID,
		Guest:          o.IsGuest(),
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		Currency:       o.Currency,
		Breakdown:      NewBreakdownDTO(o.Breakdown),
		Items:          items,
		PaymentAttempt: o.PaymentAttempt,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.TransactionID != nil {
		resp.TransactionID = *o.TransactionID
	}
	return resp
}

type LedgerEntryDTO struct {
	Kind          string    `json:"kind"`
	Reference     string    `json:"reference,omitempty"`
	Status        string    `json:"status"`
	RawCode       string    `json:"rawCode,omitempty"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	Source        string    `json:"source,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

type LedgerResponse struct {
	TraceID string           `json:"traceId"`
	OrderID string           `json:"orderId"`
	Entries []LedgerEntryDTO `json:"entries"`
}

func NewLedgerResponse(traceID, orderID string, entries []ledger.Entry) LedgerResponse {
	out := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = LedgerEntryDTO{
			Kind:          string(e.Kind),
			Reference:     e.Reference,
			Status:        e.Status,
			RawCode:       e.RawCode,
			Amount:        domain.FormatAmount(e.Amount),
			Currency:      e.Currency,
			TransactionID: e.TransactionID,
			Source:        e.Source,
			Detail:        e.Detail,
			RecordedAt:    e.RecordedAt,
		}
	}
	return LedgerResponse{TraceID: traceID, OrderID: orderID, Entries: out}
}

type RefundRequest struct {
	// Amount is optional; empty means a full refund.
	Amount string `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RefundInput struct {
	OrderID string
	Amount  *decimal.Decimal
	Reason  string
	TraceID string
}

type RefundResult struct {
	OrderID         string
	RefundReference string
	Status          string
	Amount          decimal.Decimal
	Currency        string
}

type RefundResponse struct {
	TraceID         string    `json:"traceId"`
	OrderID         string    `json:"orderId"`
	RefundReference string    `json:"refundReference"`
	Status          string    `json:"status"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Timestamp       time.Time `json:"timestamp"`
}

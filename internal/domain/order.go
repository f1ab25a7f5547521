package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GuestOwner is stored as the owner of orders placed without an account.
const GuestOwner = "guest"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID               string
	OwnerID          string
	Items            []LineItem
	Shipping         ShippingAddress
	Contact          ContactInfo
	Currency         string
	Breakdown        Breakdown
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	GatewayReference *string
	SessionURL       *string
	TransactionID    *string
	PaymentAttempt   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LineItem captures the unit price at order time; it is never re-read from
// the catalog afterwards.
type LineItem struct {
	ProductID string
	Name      string
	Size      string
	Color     string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type ShippingAddress struct {
	FirstName string
	LastName  string
	Address   string
	City      string
	State     string
	ZipCode   string
	Country   string
}

func (a ShippingAddress) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type ContactInfo struct {
	Email string
	Phone string
}

func (o *Order) IsGuest() bool {
	return o.OwnerID == GuestOwner
}

func (o *Order) HasGatewayReference() bool {
	return o.GatewayReference != nil && *o.GatewayReference != ""
}

func (o *Order) Reference() string {
	if o.GatewayReference == nil {
		return ""
	}
	return *o.GatewayReference
}

// Apply mirrors a persisted transition onto the in-memory copy.
func (o *Order) Apply(t PaymentTransition) {
	o.PaymentStatus = t.ToPayment
	o.Status = t.ToOrder
	if t.TransactionID != nil {
		o.TransactionID = t.TransactionID
	}
	o.UpdatedAt = t.At
}

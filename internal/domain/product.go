package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	SalePrice decimal.NullDecimal
	Stock     *int
	IsActive  bool
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectivePrice is the price charged today: the sale price when one is set.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// TracksStock is false for products sold without an inventory count.
func (p Product) TracksStock() bool {
	return p.Stock != nil
}

// CanFulfill reports whether quantity units can be sold right now.
func (p Product) CanFulfill(quantity int) bool {
	if !p.TracksStock() {
		return true
	}
	return p.AvailableStock() >= quantity
}

func (p Product) AvailableStock() int {
	if p.Stock == nil {
		return 0
	}
	if *p.Stock < 0 {
		return 0
	}
	return *p.Stock
}

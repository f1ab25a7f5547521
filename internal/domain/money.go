package domain

import "github.com/shopspring/decimal"

// MinorUnits is the number of decimal places used for every supported
// currency amount.
const MinorUnits int32 = 2

type Breakdown struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Balanced reports total == subtotal + shipping + tax with no negative part.
func (b Breakdown) Balanced() bool {
	for _, part := range []decimal.Decimal{b.Subtotal, b.Shipping, b.Tax, b.Total} {
		if part.IsNegative() {
			return false
		}
	}
	return b.Subtotal.Add(b.Shipping).Add(b.Tax).Equal(b.Total)
}

// FormatAmount renders an amount with the currency minor-unit precision.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(MinorUnits)
}

package service

import (
	"github.com/shopspring/decimal"

	"storefront/internal/config"
	"storefront/internal/domain"
)

// PricingPolicy turns line items into the amounts charged at checkout.
// Shipping is waived once the subtotal reaches FreeShippingThreshold; tax is
// TaxRate of the subtotal rounded to minor units.
type PricingPolicy struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              string
}

func NewPricingPolicy(cfg config.CheckoutConfig) PricingPolicy {
	return PricingPolicy{
		FreeShippingThreshold: decimal.NewFromFloat(cfg.FreeShippingThreshold),
		ShippingFee:           decimal.NewFromFloat(cfg.ShippingFee),
		TaxRate:               decimal.NewFromFloat(cfg.TaxRate),
		Currency:              cfg.Currency,
	}
}

func (p PricingPolicy) Quote(items []domain.LineItem) domain.Breakdown {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(domain.MinorUnits)

	shipping := p.ShippingFee
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) || subtotal.IsZero() {
		shipping = decimal.Zero
	}
	shipping = shipping.Round(domain.MinorUnits)

	tax := subtotal.Mul(p.TaxRate).Round(domain.MinorUnits)

	return domain.Breakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

func (p PricingPolicy) CurrencyCode() string {
	return p.Currency
}

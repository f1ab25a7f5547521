package product

import (
	"context"

	"storefront/internal/domain"
)

type lookupUseCase struct {
	service  Service
	currency string
}

func NewLookupUseCase(service Service, currency string) LookupUseCase {
	return &lookupUseCase{service: service, currency: currency}
}

func (uc *lookupUseCase) LookupProducts(ctx context.Context, req LookupProductsRequest) (*LookupProductsResponse, error) {
	lookup, err := uc.service.Resolve(ctx, dedupe(req.ProductIDs))
	if err != nil {
		return nil, err
	}

	products := make([]ProductDTO, 0, len(lookup.Sellable))
	for _, p := range lookup.Sellable {
		item := ProductDTO{
			ID:             p.ID,
			Name:           p.Name,
			Price:          domain.FormatAmount(p.Price),
			EffectivePrice: domain.FormatAmount(p.EffectivePrice()),
			Currency:       uc.currency,
			TracksStock:    p.TracksStock(),
			AvailableStock: p.AvailableStock(),
		}
		if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() {
			item.SalePrice = domain.FormatAmount(p.SalePrice.Decimal)
		}
		products = append(products, item)
	}

	return &LookupProductsResponse{
		Products: products,
		Inactive: lookup.Inactive,
		NotFound: lookup.NotFoundIDs,
	}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

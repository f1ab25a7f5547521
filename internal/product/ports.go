package product

import (
	"context"

	"storefront/internal/domain"
)

type LookupUseCase interface {
	LookupProducts(ctx context.Context, req LookupProductsRequest) (*LookupProductsResponse, error)
}

type Service interface {
	Resolve(ctx context.Context, ids []string) (*Lookup, error)
}

type Repository interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

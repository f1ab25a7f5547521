package product

import (
	"context"
	"fmt"

	"storefront/internal/domain"
)

// Lookup splits a request for product ids by what checkout would do with
// each: sell it, reject it as inactive, or reject it as unknown.
type Lookup struct {
	Sellable    []domain.Product
	Inactive    []string
	NotFoundIDs []string
}

type catalogService struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &catalogService{repo: repo}
}

// Resolve keeps the request order in every list.
func (s *catalogService) Resolve(ctx context.Context, ids []string) (*Lookup, error) {
	stored, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving %d products: %w", len(ids), err)
	}

	byID := make(map[string]domain.Product, len(stored))
	for _, p := range stored {
		byID[p.ID] = p
	}

	lookup := &Lookup{
		Sellable:    make([]domain.Product, 0, len(stored)),
		Inactive:    []string{},
		NotFoundIDs: []string{},
	}
	for _, id := range ids {
		p, ok := byID[id]
		switch {
		case !ok:
			lookup.NotFoundIDs = append(lookup.NotFoundIDs, id)
		case !p.IsActive:
			lookup.Inactive = append(lookup.Inactive, id)
		default:
			lookup.Sellable = append(lookup.Sellable, p)
		}
	}

	return lookup, nil
}

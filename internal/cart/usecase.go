package cart

import (
	"context"

	"go.uber.org/zap"

	apperrors "storefront/internal/errors"
	"storefront/internal/identity"
)

type Store interface {
	Get(ctx context.Context, key string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}

type UseCase struct {
	store  Store
	logger *zap.Logger
}

func NewUseCase(store Store, logger *zap.Logger) *UseCase {
	return &UseCase{store: store, logger: logger}
}

func (uc *UseCase) GetCart(ctx context.Context, principal identity.Principal) (*Cart, error) {
	key, err := cartKey(principal)
	if err != nil {
		return nil, err
	}
	return uc.store.Get(ctx, key)
}

// ReplaceItems overwrites the caller's cart. An empty list clears it.
func (uc *UseCase) ReplaceItems(ctx context.Context, principal identity.Principal, items []Item) (*Cart, error) {
	key, err := cartKey(principal)
	if err != nil {
		return nil, err
	}
	if details := ValidateItems(items); len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details...)
	}

	c := &Cart{Key: key, Items: items}
	if err := uc.store.Save(ctx, c); err != nil {
		uc.logger.Error("failed to save cart", zap.String("cartKey", key), zap.Error(err))
		return nil, err
	}
	return c, nil
}

func cartKey(p identity.Principal) (string, error) {
	key := p.CartKey()
	if key == "" {
		return "", apperrors.NewValidationError("cart session required", apperrors.ValidationDetail{
			Field:   identity.CartSessionHeader,
			Message: "sign in or send a cart session",
		})
	}
	return key, nil
}

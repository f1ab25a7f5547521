package usecase

import (
	"context"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/identity"
	"storefront/internal/ledger"
)

type LedgerReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]ledger.Entry, error)
}

// OrderQueryUseCase serves order and ledger reads. Guest orders are readable
// by anyone holding the order id; account orders only by their owner or an
// administrator.
type OrderQueryUseCase struct {
	orders OrderFinder
	ledger LedgerReader
}

func NewOrderQueryUseCase(orders OrderFinder, ledgerReader LedgerReader) *OrderQueryUseCase {
	return &OrderQueryUseCase{orders: orders, ledger: ledgerReader}
}

func (uc *OrderQueryUseCase) GetOrder(ctx context.Context, principal identity.Principal, orderID string) (*domain.Order, error) {
	order, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canRead(principal, order) {
		return nil, apperrors.NewForbiddenError("order belongs to another customer")
	}
	return order, nil
}

func (uc *OrderQueryUseCase) GetLedger(ctx context.Context, principal identity.Principal, orderID string) ([]ledger.Entry, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.NewForbiddenError("ledger requires an administrator")
	}
	if _, err := uc.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	return uc.ledger.ListByOrder(ctx, orderID)
}

func canRead(p identity.Principal, order *domain.Order) bool {
	return order.IsGuest() || p.IsAdmin() || order.OwnerID == p.OwnerID()
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/gateway"
	"storefront/internal/identity"
	"storefront/internal/ledger"
)

type OrderFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}

type Refunder interface {
	Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error)
}

type LedgerStore interface {
	Save(ctx context.Context, entry *ledger.Entry) error
	ListByOrder(ctx context.Context, orderID string) ([]ledger.Entry, error)
}

// RefundUseCase returns money for an authorized order. The order status does
// not change; refunds live in the ledger.
type RefundUseCase struct {
	orders   OrderFinder
	refunder Refunder
	ledger   LedgerStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewRefundUseCase(orders OrderFinder, refunder Refunder, ledgerStore LedgerStore, logger *zap.Logger) *RefundUseCase {
	return &RefundUseCase{
		orders:   orders,
		refunder: refunder,
		ledger:   ledgerStore,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *RefundUseCase) Refund(ctx context.Context, principal identity.Principal, in dto.RefundInput) (*dto.RefundResult, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.NewForbiddenError("refunds require an administrator")
	}

	logger := uc.logger.With(zap.String("orderId", in.OrderID), zap.String("traceId", in.TraceID))

	order, err := uc.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusAuthorized {
		return nil, apperrors.NewConflictError(fmt.Sprintf("order %s is not paid", order.ID))
	}

	history, err := uc.ledger.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	refunded := decimal.Zero
	for _, e := range history {
		if e.Kind == ledger.KindRefund {
			refunded = refunded.Add(e.Amount)
		}
	}
	remaining := order.Breakdown.Total.Sub(refunded)

	amount := remaining
	if in.Amount != nil {
		amount = in.Amount.Round(domain.MinorUnits)
		if !amount.IsPositive() {
			return nil, apperrors.NewValidationError("invalid refund amount", apperrors.ValidationDetail{
				Field:   "amount",
				Message: "amount must be positive",
			})
		}
	}
	if !remaining.IsPositive() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("order %s is already fully refunded", order.ID))
	}
	if amount.GreaterThan(remaining) {
		return nil, apperrors.NewValidationError("invalid refund amount", apperrors.ValidationDetail{
			Field:   "amount",
			Message: fmt.Sprintf("amount must not exceed %s", domain.FormatAmount(remaining)),
		})
	}

	req := gateway.RefundRequest{OrderID: order.ID, Reference: order.Reference()}
	if in.Amount != nil || refunded.IsPositive() {
		req.Amount = &amount
	}

	refund, err := uc.refunder.Refund(ctx, req)
	if err != nil {
		if ge, ok := apperrors.IsGatewayUnavailableError(err); ok {
			ge.OrderID = order.ID
		}
		logger.Warn("refund failed", zap.Error(err))
		return nil, err
	}

	if err := uc.ledger.Save(ctx, &ledger.Entry{
		OrderID:       order.ID,
		Reference:     order.Reference(),
		Kind:          ledger.KindRefund,
		Status:        refund.Status,
		Amount:        amount,
		Currency:      order.Currency,
		TransactionID: refund.Reference,
		Source:        "refund",
		TraceID:       in.TraceID,
		Detail:        in.Reason,
		RecordedAt:    uc.now(),
	}); err != nil {
		logger.Error("refund issued but not recorded in ledger",
			zap.Bool("alert", true),
			zap.String("refundReference", refund.Reference),
			zap.Error(err))
	}

	logger.Info("refund issued",
		zap.String("refundReference", refund.Reference),
		zap.String("amount", domain.FormatAmount(amount)),
		zap.String("status", refund.Status))

	return &dto.RefundResult{
		OrderID:         order.ID,
		RefundReference: refund.Reference,
		Status:          refund.Status,
		Amount:          amount,
		Currency:        order.Currency,
	}, nil
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/infrastructure/mysql"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type StockRepository interface {
	DecrementStock(ctx context.Context, tx *sql.Tx, productID string, quantity int) error
}

// FulfillmentService decrements stock for an order whose payment has just
// been confirmed. It runs once per order, after the authorizing transition
// was persisted.
type FulfillmentService struct {
	db               TransactionManager
	stockRepo        StockRepository
	logger           *zap.Logger
	txTimeout        time.Duration
	maxRetryAttempts int
	backoffs         []time.Duration
}

func NewFulfillmentService(
	db TransactionManager,
	stockRepo StockRepository,
	logger *zap.Logger,
	txTimeout time.Duration,
	maxRetryAttempts int,
) *FulfillmentService {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &FulfillmentService{
		db:               db,
		stockRepo:        stockRepo,
		logger:           logger,
		txTimeout:        txTimeout,
		maxRetryAttempts: maxRetryAttempts,
		backoffs:         []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond},
	}
}

// OnPaymentConfirmed satisfies the reconcile hook contract.
func (s *FulfillmentService) OnPaymentConfirmed(ctx context.Context, order *domain.Order) error {
	_, err := s.Fulfill(ctx, order)
	return err
}

func (s *FulfillmentService) Fulfill(ctx context.Context, order *domain.Order) (*dto.FulfillmentResult, error) {
	lines := aggregateQuantities(order.Items)

	var lastErr error
	for attempt := 1; attempt <= s.maxRetryAttempts; attempt++ {
		result, err := s.decrementAll(ctx, order.ID, lines)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !mysql.IsDeadlock(err) {
			return nil, err
		}
		if attempt == s.maxRetryAttempts {
			break
		}

		s.logger.Warn("deadlock detected, retrying",
			zap.String("orderId", order.ID),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.maxRetryAttempts))

		if err := s.sleep(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, apperrors.NewInternalError(
		fmt.Sprintf("fulfillment for order %s gave up after %d attempts", order.ID, s.maxRetryAttempts),
		lastErr,
	)
}

func (s *FulfillmentService) decrementAll(ctx context.Context, orderID string, lines []dto.ItemSuccess) (*dto.FulfillmentResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.String("orderId", orderID), zap.Error(err))
		return nil, err
	}
	// MySQL ignores rollback after commit.
	defer tx.Rollback()

	successes := []dto.ItemSuccess{}
	failures := []dto.ItemFailure{}

	for _, line := range lines {
		err := s.stockRepo.DecrementStock(txCtx, tx, line.ProductID, line.Quantity)
		if err == nil {
			successes = append(successes, line)
			continue
		}

		reason, ok := shortfallReason(err)
		if !ok {
			s.logger.Error("stock decrement error", zap.String("orderId", orderID), zap.String("productId", line.ProductID), zap.Error(err))
			return nil, err
		}
		failures = append(failures, dto.ItemFailure{ProductID: line.ProductID, Quantity: line.Quantity, Reason: reason})
		s.logger.Warn("stock shortfall on paid order",
			zap.String("orderId", orderID),
			zap.String("productId", line.ProductID),
			zap.Int("quantity", line.Quantity),
			zap.String("reason", string(reason)))
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit transaction", zap.String("orderId", orderID), zap.Error(err))
		return nil, err
	}

	status := dto.FulfillmentAllSuccess
	switch {
	case len(successes) == 0 && len(failures) > 0:
		status = dto.FulfillmentAllFailed
	case len(failures) > 0:
		status = dto.FulfillmentPartial
	}

	s.logger.Info("fulfillment committed",
		zap.String("orderId", orderID),
		zap.String("status", string(status)),
		zap.Int("successCount", len(successes)),
		zap.Int("failureCount", len(failures)))

	return &dto.FulfillmentResult{
		Status:    status,
		OrderID:   orderID,
		Successes: successes,
		Failures:  failures,
	}, nil
}

func (s *FulfillmentService) sleep(ctx context.Context, attempt int) error {
	base := s.backoffs[len(s.backoffs)-1]
	if attempt-1 < len(s.backoffs) {
		base = s.backoffs[attempt-1]
	}
	// ±20% jitter
	wait := time.Duration(float64(base) * (0.8 + rand.Float64()*0.4))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shortfallReason(err error) (dto.FailureReason, bool) {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return dto.ReasonNotFound, true
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		return dto.ReasonInsufficientStock, true
	}
	return "", false
}

// aggregateQuantities sums quantities per product and sorts by product id so
// concurrent fulfillments lock rows in the same order.
func aggregateQuantities(items []domain.LineItem) []dto.ItemSuccess {
	totals := make(map[string]int)
	for _, item := range items {
		totals[item.ProductID] += item.Quantity
	}

	lines := make([]dto.ItemSuccess, 0, len(totals))
	for id, qty := range totals {
		lines = append(lines, dto.ItemSuccess{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
)

type ReverificationSource interface {
	ListIDsForReverification(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]string, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, n dto.Notification) (*dto.ReconcileResult, error)
}

type SweepOptions struct {
	Concurrency int
	BatchSize   int
	MinAge      time.Duration
}

// SweepUseCase re-verifies orders whose payment is still held or pending
// after MinAge. It is run on demand, never in the background.
type SweepUseCase struct {
	orders     ReverificationSource
	reconciler Reconciler
	opts       SweepOptions
	logger     *zap.Logger
	now        func() time.Time
}

func NewSweepUseCase(orders ReverificationSource, reconciler Reconciler, opts SweepOptions, logger *zap.Logger) *SweepUseCase {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 50
	}
	return &SweepUseCase{
		orders:     orders,
		reconciler: reconciler,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *SweepUseCase) Sweep(ctx context.Context, req dto.SweepRequest, traceID string) (*dto.SweepResult, error) {
	statuses, err := parseSweepStatuses(req.Statuses)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > uc.opts.BatchSize {
		limit = uc.opts.BatchSize
	}

	ids, err := uc.orders.ListIDsForReverification(ctx, statuses, uc.now().Add(-uc.opts.MinAge), limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders to re-verify: %w", err)
	}

	logger := uc.logger.With(zap.String("traceId", traceID))
	logger.Info("sweep started", zap.Int("candidates", len(ids)))

	var (
		mu     sync.Mutex
		result = &dto.SweepResult{Examined: len(ids)}
		g      errgroup.Group
	)
	g.SetLimit(uc.opts.Concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, err := uc.reconciler.Reconcile(ctx, dto.Notification{
				OrderID: id,
				Source:  dto.SourceSweep,
				Intent:  dto.IntentRetry,
				TraceID: traceID + "/" + uuid.NewString()[:8],
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors++
				logger.Warn("sweep could not reconcile order", zap.String("orderId", id), zap.Error(err))
				return nil
			}
			switch res.Outcome {
			case dto.OutcomeConfirmed:
				result.Confirmed++
			case dto.OutcomeDeclined, dto.OutcomeCancelled:
				result.Failed++
			case dto.OutcomePendingReview, dto.OutcomeVerifying:
				result.Pending++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("sweep finished",
		zap.Int("examined", result.Examined),
		zap.Int("confirmed", result.Confirmed),
		zap.Int("failed", result.Failed),
		zap.Int("pending", result.Pending),
		zap.Int("errors", result.Errors))

	return result, ctx.Err()
}

func parseSweepStatuses(raw []string) ([]domain.PaymentStatus, error) {
	if len(raw) == 0 {
		return []domain.PaymentStatus{domain.PaymentStatusHeld, domain.PaymentStatusPending}, nil
	}

	statuses := make([]domain.PaymentStatus, 0, len(raw))
	for i, s := range raw {
		status := domain.PaymentStatus(s)
		if status != domain.PaymentStatusHeld && status != domain.PaymentStatusPending {
			return nil, apperrors.NewValidationError("invalid sweep status", apperrors.ValidationDetail{
				Field:   fmt.Sprintf("statuses[%d]", i),
				Message: "status must be held or pending",
			})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

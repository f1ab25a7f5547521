package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/gateway"
	"storefront/internal/ledger"
)

type PaymentStore interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	ApplyPaymentTransition(ctx context.Context, t domain.PaymentTransition) (bool, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, req gateway.VerifyRequest) (*gateway.Verification, error)
}

type LedgerWriter interface {
	Save(ctx context.Context, entry *ledger.Entry) error
}

// VerificationLock guards one verification per order across instances.
type VerificationLock interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
	GenerateKey(operation, key string) string
}

// ConfirmationHook runs once per order, right after the write that moved it
// to authorized.
type ConfirmationHook interface {
	OnPaymentConfirmed(ctx context.Context, order *domain.Order) error
}

type ReconcileOptions struct {
	VerifyTimeout      time.Duration
	PersistMaxAttempts int
	PersistBackoff     time.Duration
	LockTTL            time.Duration
	// SettleTimeout bounds the work after a successful verification. That
	// work outlives the caller's context.
	SettleTimeout      time.Duration
}

const defaultSettleTimeout = 15 * time.Second

// ReconcileUseCase is phase two of a payment. Every return route, the server
// callback and the sweep go through Reconcile; the gateway answer for the
// stored reference is the only input that moves an order.
type ReconcileUseCase struct {
	orders   PaymentStore
	verifier PaymentVerifier
	ledger   LedgerWriter
	lock     VerificationLock
	hooks    []ConfirmationHook
	opts     ReconcileOptions
	logger   *zap.Logger
	group    singleflight.Group
	now      func() time.Time
}

func NewReconcileUseCase(
	orders PaymentStore,
	verifier PaymentVerifier,
	ledgerWriter LedgerWriter,
	lock VerificationLock,
	opts ReconcileOptions,
	logger *zap.Logger,
	hooks ...ConfirmationHook,
) *ReconcileUseCase {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = defaultSettleTimeout
	}
	return &ReconcileUseCase{
		orders:   orders,
		verifier: verifier,
		ledger:   ledgerWriter,
		lock:     lock,
		hooks:    hooks,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ReconcileUseCase) Reconcile(ctx context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
	if strings.TrimSpace(n.OrderID) == "" {
		return nil, apperrors.NewValidationError("orderId is required", apperrors.ValidationDetail{
			Field:   "orderId",
			Message: "orderId is required",
		})
	}
	if n.Intent == "" {
		n.Intent = dto.IntentRetry
	}

	// Identical notifications for one order share a single verification,
	// so it cannot depend on whichever caller happened to start it.
	key := n.OrderID + "|" + string(n.Intent)
	v, err, shared := uc.group.Do(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.opts.VerifyTimeout+uc.opts.SettleTimeout)
		defer cancel()
		return uc.reconcile(runCtx, n)
	})
	if err != nil {
		return nil, err
	}

	result := *v.(*dto.ReconcileResult)
	if shared {
		uc.logger.Debug("reconciliation shared with concurrent caller",
			zap.String("orderId", n.OrderID),
			zap.String("traceId", n.TraceID))
	}
	return &result, nil
}

func (uc *ReconcileUseCase) reconcile(ctx context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
	logger := uc.logger.With(
		zap.String("orderId", n.OrderID),
		zap.String("traceId", n.TraceID),
		zap.String("source", string(n.Source)))

	lockKey := uc.lock.GenerateKey("verify", n.OrderID)
	holder := uuid.New().String()
	acquired, err := uc.lock.SetNX(ctx, lockKey, holder, uc.opts.LockTTL)
	if err != nil {
		logger.Warn("verification lock unavailable, continuing without it", zap.Error(err))
		acquired = true
	}
	if !acquired {
		logger.Info("verification already in progress elsewhere")
		return &dto.ReconcileResult{OrderID: n.OrderID, Outcome: dto.OutcomeVerifying}, nil
	}
	defer uc.release(ctx, logger, lockKey, holder)

	order, err := uc.orders.FindByID(ctx, n.OrderID)
	if err != nil {
		return nil, err
	}

	if !order.HasGatewayReference() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("order %s has no payment session", order.ID))
	}
	if n.Reference != "" && n.Reference != order.Reference() {
		logger.Warn("notification reference does not match stored reference",
			zap.String("claimedReference", n.Reference),
			zap.String("storedReference", order.Reference()))
	}

	if order.PaymentStatus.IsTerminal() || order.Status != domain.OrderStatusPending {
		logger.Info("order already settled, replaying", zap.String("paymentStatus", string(order.PaymentStatus)))
		return replayOf(order), nil
	}

	verification, err := uc.verify(ctx, order)
	if err != nil {
		logger.Warn("payment verification failed", zap.Error(err))
		return nil, err
	}

	// The gateway has answered. Recording that answer must not depend on the
	// client still waiting for it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.opts.SettleTimeout)
	defer cancel()

	uc.record(ctx, logger, &ledger.Entry{
		OrderID:       order.ID,
		Reference:     verification.Reference,
		Kind:          ledger.KindVerification,
		Status:        string(verification.Status),
		RawCode:       verification.RawCode,
		Amount:        verification.Amount,
		Currency:      verification.Currency,
		TransactionID: verification.TransactionID,
		Source:        string(n.Source),
		TraceID:       n.TraceID,
		Detail:        cardDetail(verification),
	})

	logger.Info("payment verified",
		zap.String("reference", order.Reference()),
		zap.String("status", string(verification.Status)),
		zap.String("rawCode", verification.RawCode),
		zap.String("amount", domain.FormatAmount(verification.Amount)),
		zap.String("currency", verification.Currency))

	to, toOrder, err := uc.target(logger, order, verification, n.Intent)
	if err != nil {
		return nil, err
	}

	if to == order.PaymentStatus {
		return &dto.ReconcileResult{
			OrderID:       order.ID,
			Outcome:       dto.OutcomeForStatus(to),
			OrderStatus:   order.Status,
			PaymentStatus: order.PaymentStatus,
		}, nil
	}

	transition := domain.NewPaymentTransition(order.ID, order.Reference(), to, toOrder, uc.now())
	if to == domain.PaymentStatusAuthorized && verification.TransactionID != "" {
		txID := verification.TransactionID
		transition.TransactionID = &txID
	}

	var failedAttempt bool
	applied, err := persistWithRetry(ctx, uc.opts.PersistMaxAttempts, uc.opts.PersistBackoff, func(ctx context.Context) (bool, error) {
		applied, err := uc.orders.ApplyPaymentTransition(ctx, transition)
		if err != nil {
			failedAttempt = true
		}
		return applied, err
	})
	if err != nil {
		captured := to == domain.PaymentStatusAuthorized
		uc.record(ctx, logger, &ledger.Entry{
			OrderID:       order.ID,
			Reference:     order.Reference(),
			Kind:          ledger.KindPersistFailure,
			Status:        string(to),
			Amount:        verification.Amount,
			Currency:      verification.Currency,
			TransactionID: verification.TransactionID,
			Source:        string(n.Source),
			TraceID:       n.TraceID,
			Detail:        err.Error(),
		})
		logger.Error("payment state not persisted",
			zap.Bool("alert", true),
			zap.Bool("paymentCaptured", captured),
			zap.String("targetStatus", string(to)),
			zap.Error(err))
		return nil, apperrors.NewPersistenceError(order.ID, captured, err)
	}

	if !applied {
		current, err := uc.orders.FindByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		// A failed attempt may have committed before its reply was lost.
		if !failedAttempt || !wroteTransition(current, transition) {
			logger.Info("order changed concurrently, reporting converged state",
				zap.String("paymentStatus", string(current.PaymentStatus)))
			return replayOf(current), nil
		}
		logger.Warn("earlier write attempt committed, continuing as applied")
	}

	order.Apply(transition)
	uc.record(ctx, logger, &ledger.Entry{
		OrderID:       order.ID,
		Reference:     order.Reference(),
		Kind:          ledger.KindTransition,
		Status:        string(to),
		Amount:        verification.Amount,
		Currency:      verification.Currency,
		TransactionID: verification.TransactionID,
		Source:        string(n.Source),
		TraceID:       n.TraceID,
		Detail:        fmt.Sprintf("order %s", toOrder),
	})

	logger.Info("payment reconciled",
		zap.String("paymentStatus", string(to)),
		zap.String("orderStatus", string(toOrder)))

	if to == domain.PaymentStatusAuthorized {
		for _, hook := range uc.hooks {
			if err := hook.OnPaymentConfirmed(ctx, order); err != nil {
				logger.Error("post-confirmation step failed", zap.Error(err))
			}
		}
	}

	return &dto.ReconcileResult{
		OrderID:       order.ID,
		Outcome:       dto.OutcomeForStatus(to),
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		TransactionID: deref(order.TransactionID),
	}, nil
}

// release deletes the lock only while this call still holds it; after the
// TTL another instance may own the key.
func (uc *ReconcileUseCase) release(ctx context.Context, logger *zap.Logger, key, holder string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	current, err := uc.lock.Get(ctx, key)
	if err != nil {
		logger.Warn("failed to read verification lock", zap.Error(err))
		return
	}
	if current != holder {
		return
	}
	if err := uc.lock.Del(ctx, key); err != nil {
		logger.Warn("failed to release verification lock", zap.Error(err))
	}
}

func (uc *ReconcileUseCase) verify(ctx context.Context, order *domain.Order) (*gateway.Verification, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, uc.opts.VerifyTimeout)
	defer cancel()

	v, err := uc.verifier.Verify(verifyCtx, gateway.VerifyRequest{OrderID: order.ID, Reference: order.Reference()})
	if err != nil {
		ge, ok := apperrors.IsGatewayUnavailableError(err)
		if !ok {
			ge = apperrors.NewGatewayUnavailableError("check", "", err)
		}
		ge.OrderID = order.ID
		return nil, ge
	}
	return v, nil
}

// target maps a normalized verification onto the payment and order status
// to write.
func (uc *ReconcileUseCase) target(logger *zap.Logger, order *domain.Order, v *gateway.Verification, intent dto.Intent) (domain.PaymentStatus, domain.OrderStatus, error) {
	failedOrder := domain.OrderStatusPending
	if intent == dto.IntentAbandon {
		failedOrder = domain.OrderStatusCancelled
	}

	switch v.Status {
	case gateway.StatusAuthorized:
		if !amountMatches(order, v) {
			logger.Error("verified amount does not match order total, holding for review",
				zap.String("expectedAmount", domain.FormatAmount(order.Breakdown.Total)),
				zap.String("expectedCurrency", order.Currency),
				zap.String("verifiedAmount", domain.FormatAmount(v.Amount)),
				zap.String("verifiedCurrency", v.Currency))
			return domain.PaymentStatusHeld, domain.OrderStatusPending, nil
		}
		return domain.PaymentStatusAuthorized, domain.OrderStatusConfirmed, nil
	case gateway.StatusDeclined:
		return domain.PaymentStatusDeclined, failedOrder, nil
	case gateway.StatusCancelled:
		return domain.PaymentStatusCancelled, failedOrder, nil
	case gateway.StatusHeld:
		return domain.PaymentStatusHeld, domain.OrderStatusPending, nil
	case gateway.StatusUnknown:
		return "", "", unknownStatus(order.ID, v.RawCode)
	default:
		return "", "", unknownStatus(order.ID, v.RawCode)
	}
}

func (uc *ReconcileUseCase) record(ctx context.Context, logger *zap.Logger, entry *ledger.Entry) {
	entry.RecordedAt = uc.now()
	if err := uc.ledger.Save(ctx, entry); err != nil {
		logger.Error("failed to write payment ledger",
			zap.String("kind", string(entry.Kind)),
			zap.String("status", entry.Status),
			zap.Error(err))
	}
}

// amountMatches compares the verified charge with the stored total. A
// verification without a currency is compared on amount only.
func amountMatches(order *domain.Order, v *gateway.Verification) bool {
	if !v.Amount.Equal(order.Breakdown.Total) {
		return false
	}
	return v.Currency == "" || strings.EqualFold(v.Currency, order.Currency)
}

// wroteTransition reports whether the stored order holds exactly the state t
// writes, timestamp included. No other writer produces the same timestamp.
func wroteTransition(order *domain.Order, t domain.PaymentTransition) bool {
	if order.Reference() != t.ExpectedReference || order.PaymentStatus != t.ToPayment || order.Status != t.ToOrder {
		return false
	}
	if t.TransactionID != nil && deref(order.TransactionID) != *t.TransactionID {
		return false
	}
	return order.UpdatedAt.Truncate(time.Microsecond).Equal(t.At.Truncate(time.Microsecond))
}

func unknownStatus(orderID, rawCode string) error {
	ge := apperrors.NewGatewayUnavailableError("check", fmt.Sprintf("unrecognized payment status %q", rawCode), nil)
	ge.OrderID = orderID
	return ge
}

func replayOf(order *domain.Order) *dto.ReconcileResult {
	return &dto.ReconcileResult{
		OrderID:       order.ID,
		Outcome:       dto.OutcomeForStatus(order.PaymentStatus),
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		TransactionID: deref(order.TransactionID),
		Replayed:      true,
	}
}

func cardDetail(v *gateway.Verification) string {
	if v.CardType == "" && v.CardLast4 == "" {
		return ""
	}
	return strings.TrimSpace(v.CardType + " " + v.CardLast4)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

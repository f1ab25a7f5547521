package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/gateway"
	"storefront/internal/ledger"
	"storefront/internal/order/repository"
)

type fakeGateway struct {
	CreateSessionFunc func(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error)
	VerifyFunc        func(ctx context.Context, req gateway.VerifyRequest) (*gateway.Verification, error)
	RefundFunc        func(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error)

	creates  atomic.Int32
	verifies atomic.Int32
	refunds  atomic.Int32
}

func (g *fakeGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	g.creates.Add(1)
	return g.CreateSessionFunc(ctx, req)
}

func (g *fakeGateway) Verify(ctx context.Context, req gateway.VerifyRequest) (*gateway.Verification, error) {
	g.verifies.Add(1)
	return g.VerifyFunc(ctx, req)
}

func (g *fakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	g.refunds.Add(1)
	return g.RefundFunc(ctx, req)
}

// sequentialSessions hands out ref-1, ref-2, ... for each session created.
func sequentialSessions() func(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	var n atomic.Int32
	return func(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
		i := n.Add(1)
		ref := "ref-" + string(rune('0'+i))
		return &gateway.Session{URL: "https://pay.example/" + ref, Reference: ref}, nil
	}
}

func verifiedAs(status gateway.Status, code string, amount string) func(ctx context.Context, req gateway.VerifyRequest) (*gateway.Verification, error) {
	return func(ctx context.Context, req gateway.VerifyRequest) (*gateway.Verification, error) {
		return &gateway.Verification{
			Reference:     req.Reference,
			Status:        status,
			RawCode:       code,
			Amount:        decimal.RequireFromString(amount),
			Currency:      "AED",
			TransactionID: "tx-" + req.Reference,
			CardLast4:     "1111",
			CardType:      "Visa",
		}, nil
	}
}

func gatewayDown(ctx context.Context, req gateway.VerifyRequest) (*gateway.Verification, error) {
	return nil, apperrors.NewGatewayUnavailableError("check", "", context.DeadlineExceeded)
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
	SaveErr error
}

func (l *fakeLedger) Save(ctx context.Context, entry *ledger.Entry) error {
	if l.SaveErr != nil {
		return l.SaveErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *fakeLedger) ListByOrder(ctx context.Context, orderID string) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []ledger.Entry{}
	for _, e := range l.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLedger) kinds(orderID string) []ledger.Kind {
	entries, _ := l.ListByOrder(context.Background(), orderID)
	kinds := make([]ledger.Kind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	return kinds
}

type countingHook struct {
	calls  atomic.Int32
	orders sync.Map
}

func (h *countingHook) OnPaymentConfirmed(ctx context.Context, order *domain.Order) error {
	h.calls.Add(1)
	h.orders.Store(order.ID, true)
	return nil
}

type failingHook struct{}

func (failingHook) OnPaymentConfirmed(ctx context.Context, order *domain.Order) error {
	return errors.New("stock service down")
}

// flakyStore fails ApplyPaymentTransition the first failures times.
type flakyStore struct {
	*repository.MemoryOrderRepository
	failures atomic.Int32
	attempts atomic.Int32
}

func (s *flakyStore) ApplyPaymentTransition(ctx context.Context, t domain.PaymentTransition) (bool, error) {
	s.attempts.Add(1)
	if s.failures.Add(-1) >= 0 {
		return false, errors.New("connection reset by peer")
	}
	return s.MemoryOrderRepository.ApplyPaymentTransition(ctx, t)
}

// ctxStore fails every call made with a finished context, the way a SQL
// driver does.
type ctxStore struct {
	*repository.MemoryOrderRepository
}

func (s ctxStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryOrderRepository.FindByID(ctx, id)
}

func (s ctxStore) ApplyPaymentTransition(ctx context.Context, t domain.PaymentTransition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.MemoryOrderRepository.ApplyPaymentTransition(ctx, t)
}

// lostReplyStore commits the first transition and then reports a network
// error, as if the reply never arrived.
type lostReplyStore struct {
	*repository.MemoryOrderRepository
	attempts atomic.Int32
}

func (s *lostReplyStore) ApplyPaymentTransition(ctx context.Context, t domain.PaymentTransition) (bool, error) {
	applied, err := s.MemoryOrderRepository.ApplyPaymentTransition(ctx, t)
	if s.attempts.Add(1) == 1 && err == nil {
		return false, errors.New("read tcp: connection reset by peer")
	}
	return applied, err
}

type busyLock struct{}

func (busyLock) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return false, nil
}
func (busyLock) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (busyLock) Del(ctx context.Context, key string) error { return nil }
func (busyLock) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

type brokenLock struct{ busyLock }

func (brokenLock) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

var testTotal = decimal.RequireFromString("182.5")

// seedOrder stores a guest order for 182.50 AED with an attached session.
func seedOrder(t *testing.T, repo *repository.MemoryOrderRepository, id, ref string) *domain.Order {
	t.Helper()
	at := time.Now().UTC().Add(-time.Hour)
	order := &domain.Order{
		ID:      id,
		OwnerID: domain.GuestOwner,
		Items: []domain.LineItem{
			{ProductID: "p-1", Name: "Linen Shirt", Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: "p-2", Name: "Silk Scarf", Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
		Shipping: domain.ShippingAddress{FirstName: "Jane", LastName: "Doe", Address: "12 Palm Street", City: "Dubai", State: "Dubai", ZipCode: "00000", Country: "AE"},
		Contact:  domain.ContactInfo{Email: "jane@example.com", Phone: "0501234567"},
		Currency: "AED",
		Breakdown: domain.Breakdown{
			Subtotal: decimal.NewFromInt(150),
			Shipping: decimal.NewFromInt(25),
			Tax:      decimal.RequireFromString("7.5"),
			Total:    testTotal,
		},
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	require.NoError(t, repo.Create(context.Background(), order))

	if ref != "" {
		applied, err := repo.AttachPaymentSession(context.Background(), domain.SessionAttachment{
			OrderID:    id,
			From:       []domain.PaymentStatus{domain.PaymentStatusPending},
			Reference:  ref,
			SessionURL: "https://pay.example/" + ref,
			At:         at,
		})
		require.NoError(t, err)
		require.True(t, applied)
	}

	stored, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return stored
}

// memLock is an in-process stand-in for the Redis lock.
type memLock struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemLock() *memLock { return &memLock{keys: map[string]string{}} }

func (l *memLock) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; ok {
		return false, nil
	}
	l.keys[key] = value.(string)
	return true, nil
}

func (l *memLock) Get(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keys[key], nil
}

func (l *memLock) Del(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}

func (l *memLock) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

// steal simulates another instance taking the key after our TTL expired.
func (l *memLock) steal(key, holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = holder
}

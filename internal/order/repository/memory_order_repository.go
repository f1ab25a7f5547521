package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errors"
)

// MemoryOrderRepository mirrors the MySQL conditional-write semantics in
// process. The use-case tests run against it, concurrency tests included.
type MemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]domain.Order)}
}

func (r *MemoryOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return errors.NewConflictError(fmt.Sprintf("order %s already exists", order.ID))
	}
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *MemoryOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	clone := cloneOrder(order)
	return &clone, nil
}

func (r *MemoryOrderRepository) ApplyPaymentTransition(ctx context.Context, t domain.PaymentTransition) (bool, error) {
	if len(t.From) == 0 {
		return false, fmt.Errorf("transition to %s has no source status", t.ToPayment)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[t.OrderID]
	if !ok || order.Reference() != t.ExpectedReference || !order.HasGatewayReference() {
		return false, nil
	}
	if order.Status != domain.OrderStatusPending || !slices.Contains(t.From, order.PaymentStatus) {
		return false, nil
	}

	order.Apply(t)
	r.orders[t.OrderID] = order
	return true, nil
}

func (r *MemoryOrderRepository) AttachPaymentSession(ctx context.Context, a domain.SessionAttachment) (bool, error) {
	if len(a.From) == 0 {
		return false, fmt.Errorf("session attachment for %s has no source status", a.OrderID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[a.OrderID]
	if !ok || order.Status != domain.OrderStatusPending || !slices.Contains(a.From, order.PaymentStatus) {
		return false, nil
	}
	if (a.ExpectedReference == nil) != (order.GatewayReference == nil) {
		return false, nil
	}
	if a.ExpectedReference != nil && *a.ExpectedReference != *order.GatewayReference {
		return false, nil
	}

	ref, url := a.Reference, a.SessionURL
	order.GatewayReference = &ref
	order.SessionURL = &url
	order.TransactionID = nil
	order.PaymentStatus = domain.PaymentStatusPending
	order.PaymentAttempt++
	order.UpdatedAt = a.At
	r.orders[a.OrderID] = order
	return true, nil
}

func (r *MemoryOrderRepository) ListIDsForReverification(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []domain.Order
	for _, order := range r.orders {
		if order.Status == domain.OrderStatusPending &&
			order.HasGatewayReference() &&
			slices.Contains(statuses, order.PaymentStatus) &&
			order.UpdatedAt.Before(updatedBefore) {
			candidates = append(candidates, order)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})

	var ids []string
	for _, order := range candidates {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, order.ID)
	}
	return ids, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	o.GatewayReference = clonePtr(o.GatewayReference)
	o.SessionURL = clonePtr(o.SessionURL)
	o.TransactionID = clonePtr(o.TransactionID)
	return o
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

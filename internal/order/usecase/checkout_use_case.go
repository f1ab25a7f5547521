package usecase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/gateway"
)

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	AttachPaymentSession(ctx context.Context, a domain.SessionAttachment) (bool, error)
}

type ProductCatalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

type CartStore interface {
	Get(ctx context.Context, key string) (*cart.Cart, error)
	Clear(ctx context.Context, key string) error
}

type Pricer interface {
	Quote(items []domain.LineItem) domain.Breakdown
	CurrencyCode() string
}

type CheckoutOptions struct {
	SiteURL            string
	Description        string
	IDPrefix           string
	PersistMaxAttempts int
	PersistBackoff     time.Duration
}

// CheckoutUseCase is phase one of a payment: it prices the cart, creates the
// order and hands back the hosted payment page. It never marks an order paid.
type CheckoutUseCase struct {
	orders  OrderStore
	catalog ProductCatalog
	carts   CartStore
	gateway gateway.Client
	pricer  Pricer
	opts    CheckoutOptions
	logger  *zap.Logger
	newID   func(prefix string) string
	now     func() time.Time
}

func NewCheckoutUseCase(
	orders OrderStore,
	catalog ProductCatalog,
	carts CartStore,
	gw gateway.Client,
	pricer Pricer,
	opts CheckoutOptions,
	logger *zap.Logger,
) *CheckoutUseCase {
	return &CheckoutUseCase{
		orders:  orders,
		catalog: catalog,
		carts:   carts,
		gateway: gw,
		pricer:  pricer,
		opts:    opts,
		logger:  logger,
		newID:   domain.NewOrderID,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *CheckoutUseCase) Checkout(ctx context.Context, in dto.CheckoutInput) (*dto.CheckoutResult, error) {
	if in.OrderID != "" {
		return uc.retry(ctx, in)
	}

	cartKey := in.Principal.CartKey()
	if cartKey == "" {
		return nil, apperrors.NewValidationError("cart session required", apperrors.ValidationDetail{
			Field:   "cart",
			Message: "sign in or send a cart session",
		})
	}

	details := validateShipping(in.Shipping, in.Contact)

	c, err := uc.carts.Get(ctx, cartKey)
	if err != nil {
		return nil, err
	}
	details = append(details, validateCartItems(c.Items)...)
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details...)
	}

	lines, details, err := uc.resolveLines(ctx, c.Items)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("some items cannot be ordered", details...)
	}

	breakdown := uc.pricer.Quote(lines)
	if !breakdown.Total.IsPositive() {
		return nil, apperrors.NewValidationError("order total must be positive", apperrors.ValidationDetail{
			Field:   "items",
			Message: "order total must be positive",
		})
	}

	now := uc.now()
	order := &domain.Order{
		ID:            uc.newID(uc.opts.IDPrefix),
		OwnerID:       in.Principal.OwnerID(),
		Items:         lines,
		Shipping:      in.Shipping,
		Contact:       in.Contact,
		Currency:      uc.pricer.CurrencyCode(),
		Breakdown:     breakdown,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := uc.orders.Create(ctx, order); err != nil {
		uc.logger.Error("failed to create order", zap.String("orderId", order.ID), zap.Error(err))
		return nil, err
	}

	uc.logger.Info("order created",
		zap.String("orderId", order.ID),
		zap.String("ownerId", order.OwnerID),
		zap.Int("itemCount", len(lines)),
		zap.String("total", domain.FormatAmount(breakdown.Total)),
		zap.String("currency", order.Currency))

	return uc.startSession(ctx, order, cartKey)
}

func (uc *CheckoutUseCase) retry(ctx context.Context, in dto.CheckoutInput) (*dto.CheckoutResult, error) {
	order, err := uc.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	if !order.IsGuest() && order.OwnerID != in.Principal.OwnerID() {
		return nil, apperrors.NewForbiddenError("order belongs to another customer")
	}

	switch order.Status {
	case domain.OrderStatusConfirmed:
		return nil, apperrors.NewConflictError("order is already paid")
	case domain.OrderStatusCancelled:
		return nil, apperrors.NewConflictError("order is cancelled")
	case domain.OrderStatusPending:
	}

	switch order.PaymentStatus {
	case domain.PaymentStatusPending:
		if order.HasGatewayReference() && order.SessionURL != nil && *order.SessionURL != "" {
			uc.logger.Info("resuming payment session", zap.String("orderId", order.ID), zap.Int("attempt", order.PaymentAttempt))
			return resumed(order), nil
		}
		return uc.startSession(ctx, order, in.Principal.CartKey())
	case domain.PaymentStatusDeclined, domain.PaymentStatusCancelled:
		return uc.startSession(ctx, order, in.Principal.CartKey())
	case domain.PaymentStatusHeld:
		return nil, apperrors.NewConflictError("payment under review")
	case domain.PaymentStatusAuthorized:
		return nil, apperrors.NewConflictError("order is already paid")
	default:
		return nil, apperrors.NewInternalError(fmt.Sprintf("order %s has unexpected payment status %q", order.ID, order.PaymentStatus), nil)
	}
}

// startSession opens a hosted payment session and records it on the order.
// A declined or cancelled attempt is superseded; otherwise the order must not
// carry a reference yet.
func (uc *CheckoutUseCase) startSession(ctx context.Context, order *domain.Order, cartKey string) (*dto.CheckoutResult, error) {
	logger := uc.logger.With(zap.String("orderId", order.ID))

	session, err := uc.gateway.CreateSession(ctx, gateway.SessionRequest{
		OrderID:     order.ID,
		Amount:      order.Breakdown.Total,
		Currency:    order.Currency,
		Description: uc.opts.Description,
		Customer: gateway.Customer{
			Email:     order.Contact.Email,
			FirstName: order.Shipping.FirstName,
			LastName:  order.Shipping.LastName,
			Phone:     order.Contact.Phone,
		},
		Return: uc.returnURLs(order.ID),
	})
	if err != nil {
		if ge, ok := apperrors.IsGatewayUnavailableError(err); ok {
			ge.OrderID = order.ID
			logger.Warn("payment session not created", zap.Error(err))
			return nil, ge
		}
		logger.Error("payment session failed", zap.Error(err))
		return nil, err
	}

	attachment := domain.SessionAttachment{
		OrderID:    order.ID,
		From:       []domain.PaymentStatus{domain.PaymentStatusPending},
		Reference:  session.Reference,
		SessionURL: session.URL,
		At:         uc.now(),
	}
	if order.PaymentStatus.Supersedable() {
		prev := order.Reference()
		attachment.ExpectedReference = &prev
		attachment.From = []domain.PaymentStatus{domain.PaymentStatusDeclined, domain.PaymentStatusCancelled}
	}

	applied, err := persistWithRetry(ctx, uc.opts.PersistMaxAttempts, uc.opts.PersistBackoff, func(ctx context.Context) (bool, error) {
		return uc.orders.AttachPaymentSession(ctx, attachment)
	})
	if err != nil {
		logger.Error("failed to record payment session", zap.String("reference", session.Reference), zap.Error(err))
		return nil, apperrors.NewPersistenceError(order.ID, false, err)
	}

	if !applied {
		// Another request attached a session first; hand back the one stored.
		current, err := uc.orders.FindByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == domain.PaymentStatusPending && current.HasGatewayReference() && current.SessionURL != nil {
			logger.Info("concurrent session won, resuming stored session", zap.String("discardedReference", session.Reference))
			return resumed(current), nil
		}
		return nil, apperrors.NewConflictError("order changed while creating the payment session")
	}

	firstSession := order.PaymentAttempt == 0
	attempt := order.PaymentAttempt + 1

	logger.Info("payment session created",
		zap.String("reference", session.Reference),
		zap.Int("attempt", attempt))

	if firstSession && cartKey != "" {
		if err := uc.carts.Clear(ctx, cartKey); err != nil {
			logger.Warn("failed to clear cart", zap.String("cartKey", cartKey), zap.Error(err))
		}
	}

	return &dto.CheckoutResult{
		OrderID:    order.ID,
		PaymentURL: session.URL,
		Reference:  session.Reference,
		Currency:   order.Currency,
		Breakdown:  order.Breakdown,
		Attempt:    attempt,
	}, nil
}

// resolveLines prices cart items from the catalog. Problems with individual
// products are reported as validation details.
func (uc *CheckoutUseCase) resolveLines(ctx context.Context, items []cart.Item) ([]domain.LineItem, []apperrors.ValidationDetail, error) {
	ids := make([]string, 0, len(items))
	wanted := make(map[string]int)
	for _, item := range items {
		if _, ok := wanted[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}

	products, err := uc.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var details []apperrors.ValidationDetail
	lines := make([]domain.LineItem, 0, len(items))
	for idx, item := range items {
		field := fmt.Sprintf("items[%d].productId", idx)
		p, ok := byID[item.ProductID]
		if !ok || !p.IsActive || p.IsDeleted {
			details = append(details, apperrors.ValidationDetail{Field: field, Message: "product is not available"})
			continue
		}
		if !p.CanFulfill(wanted[item.ProductID]) {
			details = append(details, apperrors.ValidationDetail{
				Field:   field,
				Message: fmt.Sprintf("only %d left in stock", p.AvailableStock()),
			})
			continue
		}
		lines = append(lines, domain.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: p.EffectivePrice(),
		})
	}

	return lines, details, nil
}

func (uc *CheckoutUseCase) returnURLs(orderID string) gateway.ReturnURLs {
	build := func(outcome string) string {
		q := url.Values{"orderId": {orderID}}
		return uc.opts.SiteURL + "/payment/" + outcome + "?" + q.Encode()
	}
	return gateway.ReturnURLs{
		Authorised: build("success"),
		Declined:   build("declined"),
		Cancelled:  build("cancelled"),
	}
}

func resumed(order *domain.Order) *dto.CheckoutResult {
	return &dto.CheckoutResult{
		OrderID:    order.ID,
		PaymentURL: *order.SessionURL,
		Reference:  order.Reference(),
		Currency:   order.Currency,
		Breakdown:  order.Breakdown,
		Resumed:    true,
		Attempt:    order.PaymentAttempt,
	}
}

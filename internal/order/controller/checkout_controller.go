package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	"storefront/internal/identity"
)

type CheckoutUseCase interface {
	Checkout(ctx context.Context, in dto.CheckoutInput) (*dto.CheckoutResult, error)
}

type CheckoutController struct {
	responder
	useCase CheckoutUseCase
}

func NewCheckoutController(useCase CheckoutUseCase, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{
		responder: responder{logger: logger},
		useCase:   useCase,
	}
}

// Checkout creates an order from the caller's cart, or restarts payment for
// an existing order when orderId is set, and returns the payment page URL.
func (c *CheckoutController) Checkout(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		invalidBody(c.responder, w, traceID)
		return
	}

	in := dto.CheckoutInput{
		Principal: identity.FromContext(r.Context()),
		OrderID:   strings.TrimSpace(req.OrderID),
		Shipping: domain.ShippingAddress{
			FirstName: strings.TrimSpace(req.Shipping.FirstName),
			LastName:  strings.TrimSpace(req.Shipping.LastName),
			Address:   strings.TrimSpace(req.Shipping.Address),
			City:      strings.TrimSpace(req.Shipping.City),
			State:     strings.TrimSpace(req.Shipping.State),
			ZipCode:   strings.TrimSpace(req.Shipping.ZipCode),
			Country:   strings.TrimSpace(req.Shipping.Country),
		},
		Contact: domain.ContactInfo{
			Email: req.Shipping.Email,
			Phone: strings.TrimSpace(req.Shipping.Phone),
		},
	}

	result, err := c.useCase.Checkout(r.Context(), in)
	if err != nil {
		c.handleError(w, logger, traceID, in.OrderID, err)
		return
	}

	logger.Info("checkout session ready",
		zap.String("orderId", result.OrderID),
		zap.Int("attempt", result.Attempt),
		zap.Bool("resumed", result.Resumed),
	)

	status := http.StatusCreated
	if in.OrderID != "" {
		status = http.StatusOK
	}

	c.writeJSON(w, status, dto.CheckoutResponse{
		TraceID:    traceID,
		OrderID:    result.OrderID,
		PaymentURL: result.PaymentURL,
		Currency:   result.Currency,
		Breakdown:  dto.NewBreakdownDTO(result.Breakdown),
		Resumed:    result.Resumed,
		Attempt:    result.Attempt,
		Timestamp:  time.Now().UTC(),
	})
}

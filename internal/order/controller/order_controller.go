package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/identity"
	"storefront/internal/ledger"
)

type OrderQueryUseCase interface {
	GetOrder(ctx context.Context, principal identity.Principal, orderID string) (*domain.Order, error)
	GetLedger(ctx context.Context, principal identity.Principal, orderID string) ([]ledger.Entry, error)
}

type RefundUseCase interface {
	Refund(ctx context.Context, principal identity.Principal, in dto.RefundInput) (*dto.RefundResult, error)
}

type OrderController struct {
	responder
	queries OrderQueryUseCase
	refunds RefundUseCase
}

func NewOrderController(queries OrderQueryUseCase, refunds RefundUseCase, logger *zap.Logger) *OrderController {
	return &OrderController{
		responder: responder{logger: logger},
		queries:   queries,
		refunds:   refunds,
	}
}

func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	if !domain.ValidOrderID(orderID) {
		c.writeInvalidOrderID(w, traceID)
		return
	}

	order, err := c.queries.GetOrder(r.Context(), identity.FromContext(r.Context()), orderID)
	if err != nil {
		c.handleError(w, logger, traceID, orderID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderResponse(traceID, order))
}

func (c *OrderController) GetLedger(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	if !domain.ValidOrderID(orderID) {
		c.writeInvalidOrderID(w, traceID)
		return
	}

	entries, err := c.queries.GetLedger(r.Context(), identity.FromContext(r.Context()), orderID)
	if err != nil {
		c.handleError(w, logger, traceID, orderID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewLedgerResponse(traceID, orderID, entries))
}

func (c *OrderController) Refund(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	if !domain.ValidOrderID(orderID) {
		c.writeInvalidOrderID(w, traceID)
		return
	}

	// An empty body is a full refund.
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid JSON body", zap.Error(err))
		invalidBody(c.responder, w, traceID)
		return
	}

	in := dto.RefundInput{
		OrderID: orderID,
		Reason:  strings.TrimSpace(req.Reason),
		TraceID: traceID,
	}
	if raw := strings.TrimSpace(req.Amount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			c.writeValidationError(w, traceID, "invalid amount", apperrors.ValidationDetail{
				Field:   "amount",
				Message: "amount must be a decimal number",
			})
			return
		}
		in.Amount = &amount
	}

	result, err := c.refunds.Refund(r.Context(), identity.FromContext(r.Context()), in)
	if err != nil {
		c.handleError(w, logger, traceID, orderID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.RefundResponse{
		TraceID:         traceID,
		OrderID:         result.OrderID,
		RefundReference: result.RefundReference,
		Status:          result.Status,
		Amount:          domain.FormatAmount(result.Amount),
		Currency:        result.Currency,
		Timestamp:       time.Now().UTC(),
	})
}

func (c *OrderController) writeInvalidOrderID(w http.ResponseWriter, traceID string) {
	c.writeValidationError(w, traceID, "invalid orderId", apperrors.ValidationDetail{
		Field:   "orderId",
		Message: "orderId is not a valid order identifier",
	})
}

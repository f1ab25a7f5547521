package cart

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/identity"
)

type CartUseCase interface {
	GetCart(ctx context.Context, principal identity.Principal) (*Cart, error)
	ReplaceItems(ctx context.Context, principal identity.Principal, items []Item) (*Cart, error)
}

type Controller struct {
	useCase CartUseCase
	logger  *zap.Logger
}

func NewController(useCase CartUseCase, logger *zap.Logger) *Controller {
	return &Controller{useCase: useCase, logger: logger}
}

func (c *Controller) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	cart, err := c.useCase.GetCart(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, toResponse(traceID, cart))
}

func (c *Controller) HandlePutCart(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	var req dto.CartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	items := make([]Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = Item{ProductID: item.ProductID, Size: item.Size, Color: item.Color, Quantity: item.Quantity}
	}

	cart, err := c.useCase.ReplaceItems(r.Context(), identity.FromContext(r.Context()), items)
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, toResponse(traceID, cart))
}

func (c *Controller) handleError(w http.ResponseWriter, traceID string, err error) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	c.logger.Error("cart request failed", zap.String("traceId", traceID), zap.Error(err))
	c.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"traceId": traceID,
		"error":   "INTERNAL_ERROR",
		"message": "an unexpected error occurred",
	})
}

func toResponse(traceID string, cart *Cart) dto.CartResponse {
	items := make([]dto.CartItemDTO, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = dto.CartItemDTO{ProductID: item.ProductID, Size: item.Size, Color: item.Color, Quantity: item.Quantity}
	}
	return dto.CartResponse{TraceID: traceID, Items: items}
}

func (c *Controller) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}

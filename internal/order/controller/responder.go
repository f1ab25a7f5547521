package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
)

// gatewayRetryAfter is the Retry-After hint sent with 503 responses.
const gatewayRetryAfter = 5 * time.Second

type responder struct {
	logger *zap.Logger
}

func (r responder) handleError(w http.ResponseWriter, logger *zap.Logger, traceID, orderID string, err error) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		r.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if ge, ok := apperrors.IsGatewayUnavailableError(err); ok {
		if orderID == "" {
			orderID = ge.OrderID
		}
		logger.Warn("payment gateway unavailable", zap.String("orderId", orderID), zap.Error(err))
		w.Header().Set("Retry-After", strconv.Itoa(int(gatewayRetryAfter.Seconds())))
		r.writeError(w, traceID, orderID, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE",
			"the payment provider is not responding, please try again shortly", true)
		return
	}

	if pe, ok := apperrors.IsPersistenceError(err); ok {
		if orderID == "" {
			orderID = pe.OrderID
		}
		if pe.PaymentCaptured {
			// The payment went through; the order row catches up later.
			r.writeError(w, traceID, orderID, http.StatusAccepted, "CONFIRMING",
				"your payment was received and we are confirming your order", true)
			return
		}
		logger.Error("order persistence failed", zap.String("orderId", orderID), zap.Error(err))
		r.writeError(w, traceID, orderID, http.StatusServiceUnavailable, "PERSISTENCE_UNAVAILABLE",
			"the order could not be saved, please try again", true)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		r.writeError(w, traceID, orderID, http.StatusNotFound, "NOT_FOUND", err.Error(), false)
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		r.writeError(w, traceID, orderID, http.StatusConflict, "CONFLICT", err.Error(), false)
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		r.writeError(w, traceID, orderID, http.StatusForbidden, "FORBIDDEN", err.Error(), false)
		return
	}

	if _, ok := apperrors.IsUnauthorizedError(err); ok {
		r.writeError(w, traceID, orderID, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), false)
		return
	}

	logger.Error("unexpected error", zap.String("orderId", orderID), zap.Error(err))
	r.writeError(w, traceID, orderID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", false)
}

func (r responder) writeError(w http.ResponseWriter, traceID, orderID string, statusCode int, code, message string, retryable bool) {
	r.writeJSON(w, statusCode, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Message:   message,
		Code:      code,
		OrderID:   orderID,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	})
}

func (r responder) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	r.writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (r responder) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		r.logger.Error("failed to encode response", zap.Error(err))
	}
}

func invalidBody(r responder, w http.ResponseWriter, traceID string) {
	r.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
		Field:   "body",
		Message: "request body must be valid JSON",
	})
}

package controller

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
)

// maxCallbackBody caps the provider notification, JSON or form.
const maxCallbackBody = 64 << 10

type ReconcileUseCase interface {
	Reconcile(ctx context.Context, n dto.Notification) (*dto.ReconcileResult, error)
}

// PaymentController receives the browser returns and the server callback
// from the payment provider. None of them is trusted: each one only triggers
// a verification of the order's stored reference.
type PaymentController struct {
	responder
	useCase ReconcileUseCase
}

func NewPaymentController(useCase ReconcileUseCase, logger *zap.Logger) *PaymentController {
	return &PaymentController{
		responder: responder{logger: logger},
		useCase:   useCase,
	}
}

func (c *PaymentController) Success(w http.ResponseWriter, r *http.Request) {
	c.handleReturn(w, r, dto.SourceSuccess)
}

func (c *PaymentController) Declined(w http.ResponseWriter, r *http.Request) {
	c.handleReturn(w, r, dto.SourceDeclined)
}

func (c *PaymentController) Cancelled(w http.ResponseWriter, r *http.Request) {
	c.handleReturn(w, r, dto.SourceCancelled)
}

func (c *PaymentController) handleReturn(w http.ResponseWriter, r *http.Request, source dto.Source) {
	traceID := uuid.New().String()
	q := r.URL.Query()

	orderID := q.Get("orderId")
	if orderID == "" {
		orderID = q.Get("cartid")
	}

	c.reconcile(w, r, traceID, source, dto.CallbackRequest{
		OrderID: orderID,
		Ref:     q.Get("ref"),
		Intent:  q.Get("intent"),
	})
}

// Callback accepts the provider's server-to-server notification as JSON or
// as a form post.
func (c *PaymentController) Callback(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)

	var req dto.CallbackRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.logger.Warn("invalid callback body", zap.String("traceId", traceID), zap.Error(err))
			invalidBody(c.responder, w, traceID)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			c.logger.Warn("invalid callback form", zap.String("traceId", traceID), zap.Error(err))
			c.writeValidationError(w, traceID, "invalid form body", apperrors.ValidationDetail{
				Field:   "body",
				Message: "request body must be a valid form",
			})
			return
		}
		req = dto.CallbackRequest{
			CartID:  r.PostForm.Get("cartid"),
			OrderID: r.PostForm.Get("orderId"),
			Ref:     r.PostForm.Get("ref"),
			Intent:  r.PostForm.Get("intent"),
		}
	}

	if req.OrderID == "" {
		req.OrderID = req.CartID
	}

	c.reconcile(w, r, traceID, dto.SourceCallback, req)
}

func (c *PaymentController) reconcile(w http.ResponseWriter, r *http.Request, traceID string, source dto.Source, req dto.CallbackRequest) {
	orderID := strings.TrimSpace(req.OrderID)
	logger := c.logger.With(
		zap.String("traceId", traceID),
		zap.String("orderId", orderID),
		zap.String("source", string(source)),
	)

	intent, err := parseIntent(req.Intent)
	if err != nil {
		c.handleError(w, logger, traceID, orderID, err)
		return
	}

	logger.Info("payment notification received")

	result, err := c.useCase.Reconcile(r.Context(), dto.Notification{
		OrderID:   orderID,
		Reference: strings.TrimSpace(req.Ref),
		Source:    source,
		Intent:    intent,
		TraceID:   traceID,
	})
	if err != nil {
		c.handleError(w, logger, traceID, orderID, err)
		return
	}

	c.writeJSON(w, statusForResult(result), dto.PaymentResultResponse{
		TraceID:       traceID,
		OrderID:       result.OrderID,
		Outcome:       string(result.Outcome),
		OrderStatus:   string(result.OrderStatus),
		PaymentStatus: string(result.PaymentStatus),
		TransactionID: result.TransactionID,
		Replayed:      result.Replayed,
		Message:       messageForOutcome(result.Outcome),
		Timestamp:     time.Now().UTC(),
	})
}

func parseIntent(raw string) (dto.Intent, error) {
	switch dto.Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case "", dto.IntentRetry:
		return dto.IntentRetry, nil
	case dto.IntentAbandon:
		return dto.IntentAbandon, nil
	default:
		return "", apperrors.NewValidationError("invalid intent", apperrors.ValidationDetail{
			Field:   "intent",
			Message: "intent must be retry or abandon",
		})
	}
}

// statusForResult answers 200 for a replay whatever the settled outcome was;
// the body still says which.
func statusForResult(r *dto.ReconcileResult) int {
	if r.Replayed {
		return http.StatusOK
	}
	switch r.Outcome {
	case dto.OutcomeConfirmed:
		return http.StatusOK
	case dto.OutcomeDeclined, dto.OutcomeCancelled:
		return http.StatusPaymentRequired
	default:
		return http.StatusAccepted
	}
}

func messageForOutcome(o dto.Outcome) string {
	switch o {
	case dto.OutcomeConfirmed:
		return "payment confirmed"
	case dto.OutcomeDeclined:
		return "the payment was declined"
	case dto.OutcomeCancelled:
		return "the payment was cancelled"
	case dto.OutcomePendingReview:
		return "payment under review"
	default:
		return "we are confirming your payment"
	}
}

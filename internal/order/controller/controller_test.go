package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/identity"
	"storefront/internal/ledger"
)

type mockCheckout struct {
	checkoutFn func(ctx context.Context, in dto.CheckoutInput) (*dto.CheckoutResult, error)
}

func (m *mockCheckout) Checkout(ctx context.Context, in dto.CheckoutInput) (*dto.CheckoutResult, error) {
	return m.checkoutFn(ctx, in)
}

type mockReconcile struct {
	reconcileFn func(ctx context.Context, n dto.Notification) (*dto.ReconcileResult, error)
}

func (m *mockReconcile) Reconcile(ctx context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
	return m.reconcileFn(ctx, n)
}

type mockQueries struct {
	getOrderFn  func(ctx context.Context, p identity.Principal, orderID string) (*domain.Order, error)
	getLedgerFn func(ctx context.Context, p identity.Principal, orderID string) ([]ledger.Entry, error)
}

func (m *mockQueries) GetOrder(ctx context.Context, p identity.Principal, orderID string) (*domain.Order, error) {
	return m.getOrderFn(ctx, p, orderID)
}

func (m *mockQueries) GetLedger(ctx context.Context, p identity.Principal, orderID string) ([]ledger.Entry, error) {
	return m.getLedgerFn(ctx, p, orderID)
}

type mockRefunds struct {
	refundFn func(ctx context.Context, p identity.Principal, in dto.RefundInput) (*dto.RefundResult, error)
}

func (m *mockRefunds) Refund(ctx context.Context, p identity.Principal, in dto.RefundInput) (*dto.RefundResult, error) {
	return m.refundFn(ctx, p, in)
}

type mockSweep struct {
	sweepFn func(ctx context.Context, req dto.SweepRequest, traceID string) (*dto.SweepResult, error)
}

func (m *mockSweep) Sweep(ctx context.Context, req dto.SweepRequest, traceID string) (*dto.SweepResult, error) {
	return m.sweepFn(ctx, req, traceID)
}

var testOrderID = domain.NewOrderID("GZ")

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestCheckout_NewOrder(t *testing.T) {
	var got dto.CheckoutInput
	ctrl := NewCheckoutController(&mockCheckout{
		checkoutFn: func(ctx context.Context, in dto.CheckoutInput) (*dto.CheckoutResult, error) {
			got = in
			return &dto.CheckoutResult{
				OrderID:    testOrderID,
				PaymentURL: "https://pay.example/session",
				Currency:   "AED",
				Breakdown: domain.Breakdown{
					Subtotal: decimal.NewFromInt(150),
					Shipping: decimal.NewFromInt(25),
					Tax:      decimal.RequireFromString("7.5"),
					Total:    decimal.RequireFromString("182.5"),
				},
				Attempt: 1,
			}, nil
		},
	}, zap.NewNop())

	body := `{"shipping":{"firstName":" Ada ","lastName":"Lovelace","email":"ada@example.com","phone":"0501234567",
		"address":"12 Analytical Street","city":"Dubai","state":"DU","zipCode":"00000","country":"AE"}}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req = req.WithContext(identity.WithPrincipal(req.Context(), identity.Principal{SessionID: "sess-1"}))
	rec := httptest.NewRecorder()

	ctrl.Checkout(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Ada", got.Shipping.FirstName)
	assert.Equal(t, "sess-1", got.Principal.SessionID)

	var resp dto.CheckoutResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, testOrderID, resp.OrderID)
	assert.Equal(t, "https://pay.example/session", resp.PaymentURL)
	assert.Equal(t, "182.50", resp.Breakdown.Total)
	assert.NotEmpty(t, resp.TraceID)
}

func TestCheckout_InvalidJSON(t *testing.T) {
	ctrl := NewCheckoutController(&mockCheckout{}, zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp dto.ValidationErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryAfter bool
	}{
		{"gateway unavailable", apperrors.NewGatewayUnavailableError("create", "timeout", nil), http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", true},
		{"persistence before payment", apperrors.NewPersistenceError(testOrderID, false, errors.New("db down")), http.StatusServiceUnavailable, "PERSISTENCE_UNAVAILABLE", false},
		{"not found", apperrors.NewNotFoundError("order not found"), http.StatusNotFound, "NOT_FOUND", false},
		{"conflict", apperrors.NewConflictError("order is already paid"), http.StatusConflict, "CONFLICT", false},
		{"forbidden", apperrors.NewForbiddenError("not your order"), http.StatusForbidden, "FORBIDDEN", false},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewCheckoutController(&mockCheckout{
				checkoutFn: func(context.Context, dto.CheckoutInput) (*dto.CheckoutResult, error) {
					return nil, tt.err
				},
			}, zap.NewNop())

			rec := httptest.NewRecorder()
			ctrl.Checkout(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"orderId":"`+testOrderID+`"}`)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After") != "")

			var resp dto.ErrorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, testOrderID, resp.OrderID)
		})
	}
}

func TestCheckout_ValidationDetails(t *testing.T) {
	ctrl := NewCheckoutController(&mockCheckout{
		checkoutFn: func(context.Context, dto.CheckoutInput) (*dto.CheckoutResult, error) {
			return nil, apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
				Field: "shipping.email", Message: "email is invalid",
			})
		},
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp dto.ValidationErrorResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "shipping.email", resp.Details[0].Field)
}

func TestPaymentReturn_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		outcome    dto.Outcome
		replayed   bool
		wantStatus int
	}{
		{"confirmed", dto.OutcomeConfirmed, false, http.StatusOK},
		{"replayed confirmation", dto.OutcomeConfirmed, true, http.StatusOK},
		{"declined", dto.OutcomeDeclined, false, http.StatusPaymentRequired},
		{"replayed decline", dto.OutcomeDeclined, true, http.StatusOK},
		{"cancelled", dto.OutcomeCancelled, false, http.StatusPaymentRequired},
		{"held", dto.OutcomePendingReview, false, http.StatusAccepted},
		{"verifying", dto.OutcomeVerifying, false, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewPaymentController(&mockReconcile{
				reconcileFn: func(_ context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
					return &dto.ReconcileResult{OrderID: n.OrderID, Outcome: tt.outcome, Replayed: tt.replayed}, nil
				},
			}, zap.NewNop())

			rec := httptest.NewRecorder()
			ctrl.Success(rec, httptest.NewRequest(http.MethodGet, "/payment/success?orderId="+testOrderID, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp dto.PaymentResultResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, string(tt.outcome), resp.Outcome)
			assert.Equal(t, tt.replayed, resp.Replayed)
		})
	}
}

func TestPaymentReturn_PassesSourceAndIntent(t *testing.T) {
	var got dto.Notification
	ctrl := NewPaymentController(&mockReconcile{
		reconcileFn: func(_ context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
			got = n
			return &dto.ReconcileResult{OrderID: n.OrderID, Outcome: dto.OutcomeCancelled}, nil
		},
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.Cancelled(rec, httptest.NewRequest(http.MethodGet, "/payment/cancelled?cartid="+testOrderID+"&ref=ABC&intent=abandon", nil))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, testOrderID, got.OrderID)
	assert.Equal(t, "ABC", got.Reference)
	assert.Equal(t, dto.SourceCancelled, got.Source)
	assert.Equal(t, dto.IntentAbandon, got.Intent)
	assert.NotEmpty(t, got.TraceID)
}

func TestPaymentReturn_InvalidIntent(t *testing.T) {
	ctrl := NewPaymentController(&mockReconcile{
		reconcileFn: func(context.Context, dto.Notification) (*dto.ReconcileResult, error) {
			t.Fatal("reconcile must not run for an invalid intent")
			return nil, nil
		},
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.Declined(rec, httptest.NewRequest(http.MethodGet, "/payment/declined?orderId="+testOrderID+"&intent=refund", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentReturn_CapturedButNotPersisted(t *testing.T) {
	ctrl := NewPaymentController(&mockReconcile{
		reconcileFn: func(_ context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
			return nil, apperrors.NewPersistenceError(n.OrderID, true, errors.New("db down"))
		},
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.Success(rec, httptest.NewRequest(http.MethodGet, "/payment/success?orderId="+testOrderID, nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp dto.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "CONFIRMING", resp.Code)
	assert.NotContains(t, resp.Message, "db down")
}

func TestPaymentCallback_JSONAndForm(t *testing.T) {
	var got []dto.Notification
	ctrl := NewPaymentController(&mockReconcile{
		reconcileFn: func(_ context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
			got = append(got, n)
			return &dto.ReconcileResult{OrderID: n.OrderID, Outcome: dto.OutcomeConfirmed}, nil
		},
	}, zap.NewNop())

	jsonReq := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(`{"cartid":"`+testOrderID+`","ref":"R1"}`))
	jsonReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	ctrl.Callback(rec, jsonReq)
	assert.Equal(t, http.StatusOK, rec.Code)

	form := url.Values{"orderId": {testOrderID}, "ref": {"R2"}}
	formReq := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(form.Encode()))
	formReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	ctrl.Callback(rec, formReq)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, got, 2)
	assert.Equal(t, testOrderID, got[0].OrderID)
	assert.Equal(t, "R1", got[0].Reference)
	assert.Equal(t, "R2", got[1].Reference)
	assert.Equal(t, dto.SourceCallback, got[1].Source)
}

func TestPaymentCallback_OversizedBodyRejected(t *testing.T) {
	called := false
	ctrl := NewPaymentController(&mockReconcile{
		reconcileFn: func(_ context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
			called = true
			return &dto.ReconcileResult{OrderID: n.OrderID, Outcome: dto.OutcomeConfirmed}, nil
		},
	}, zap.NewNop())

	padding := strings.Repeat("a", maxCallbackBody)

	jsonReq := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(`{"orderId":"`+testOrderID+`","ref":"`+padding+`"}`))
	jsonReq.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ctrl.Callback(rec, jsonReq)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	form := url.Values{"orderId": {testOrderID}, "ref": {padding}}
	formReq := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(form.Encode()))
	formReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	ctrl.Callback(rec, formReq)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.False(t, called)
}

func TestPaymentCallback_GatewayDown(t *testing.T) {
	ctrl := NewPaymentController(&mockReconcile{
		reconcileFn: func(_ context.Context, n dto.Notification) (*dto.ReconcileResult, error) {
			ge := apperrors.NewGatewayUnavailableError("check", "", context.DeadlineExceeded)
			ge.OrderID = n.OrderID
			return nil, ge
		},
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(`{"orderId":"`+testOrderID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ctrl.Callback(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	var resp dto.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Retryable)
}

func newOrderRouter(ctrl *OrderController, principal identity.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithPrincipal(req.Context(), principal)))
		})
	})
	r.Get("/orders/{orderId}", ctrl.GetOrder)
	r.Get("/orders/{orderId}/ledger", ctrl.GetLedger)
	r.Post("/orders/{orderId}/refund", ctrl.Refund)
	return r
}

func TestGetOrder(t *testing.T) {
	ref := "REF-1"
	ctrl := NewOrderController(&mockQueries{
		getOrderFn: func(_ context.Context, _ identity.Principal, orderID string) (*domain.Order, error) {
			return &domain.Order{
				ID:               orderID,
				OwnerID:          domain.GuestOwner,
				Currency:         "AED",
				Status:           domain.OrderStatusPending,
				PaymentStatus:    domain.PaymentStatusHeld,
				GatewayReference: &ref,
				Items: []domain.LineItem{
					{ProductID: "p1", Name: "Shirt", Quantity: 2, UnitPrice: decimal.NewFromInt(75)},
				},
				PaymentAttempt: 1,
				CreatedAt:      time.Now(),
			}, nil
		},
	}, &mockRefunds{}, zap.NewNop())

	rec := httptest.NewRecorder()
	newOrderRouter(ctrl, identity.Principal{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp dto.OrderResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, testOrderID, resp.OrderID)
	assert.Equal(t, "held", resp.PaymentStatus)
	assert.True(t, resp.Guest)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "150.00", resp.Items[0].LineTotal)
}

func TestGetOrder_InvalidID(t *testing.T) {
	ctrl := NewOrderController(&mockQueries{}, &mockRefunds{}, zap.NewNop())

	rec := httptest.NewRecorder()
	newOrderRouter(ctrl, identity.Principal{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/not-an-id", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLedger_Forbidden(t *testing.T) {
	ctrl := NewOrderController(&mockQueries{
		getLedgerFn: func(context.Context, identity.Principal, string) ([]ledger.Entry, error) {
			return nil, apperrors.NewForbiddenError("ledger access requires an administrator")
		},
	}, &mockRefunds{}, zap.NewNop())

	rec := httptest.NewRecorder()
	newOrderRouter(ctrl, identity.Principal{UserID: "u1"}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID+"/ledger", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefund(t *testing.T) {
	admin := identity.Principal{UserID: "admin-1", Role: identity.RoleAdmin}

	t.Run("partial amount", func(t *testing.T) {
		var got dto.RefundInput
		ctrl := NewOrderController(&mockQueries{}, &mockRefunds{
			refundFn: func(_ context.Context, p identity.Principal, in dto.RefundInput) (*dto.RefundResult, error) {
				assert.True(t, p.IsAdmin())
				got = in
				return &dto.RefundResult{OrderID: in.OrderID, RefundReference: "RF-1", Status: "refunded", Amount: *in.Amount, Currency: "AED"}, nil
			},
		}, zap.NewNop())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders/"+testOrderID+"/refund", strings.NewReader(`{"amount":"50.5","reason":"damaged"}`))
		newOrderRouter(ctrl, admin).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got.Amount)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("50.5")))
		assert.Equal(t, "damaged", got.Reason)

		var resp dto.RefundResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "50.50", resp.Amount)
	})

	t.Run("empty body is a full refund", func(t *testing.T) {
		var got dto.RefundInput
		ctrl := NewOrderController(&mockQueries{}, &mockRefunds{
			refundFn: func(_ context.Context, _ identity.Principal, in dto.RefundInput) (*dto.RefundResult, error) {
				got = in
				return &dto.RefundResult{OrderID: in.OrderID, Amount: decimal.NewFromInt(10)}, nil
			},
		}, zap.NewNop())

		rec := httptest.NewRecorder()
		newOrderRouter(ctrl, admin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/"+testOrderID+"/refund", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, got.Amount)
	})

	t.Run("malformed amount", func(t *testing.T) {
		ctrl := NewOrderController(&mockQueries{}, &mockRefunds{}, zap.NewNop())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders/"+testOrderID+"/refund", strings.NewReader(`{"amount":"ten"}`))
		newOrderRouter(ctrl, admin).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReconcileHeld(t *testing.T) {
	var got dto.SweepRequest
	ctrl := NewSweepController(&mockSweep{
		sweepFn: func(_ context.Context, req dto.SweepRequest, traceID string) (*dto.SweepResult, error) {
			got = req
			assert.NotEmpty(t, traceID)
			return &dto.SweepResult{Examined: 3, Confirmed: 1, Failed: 1, Pending: 1}, nil
		},
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.ReconcileHeld(rec, httptest.NewRequest(http.MethodPost, "/admin/reconcile/held", strings.NewReader(`{"statuses":["held"],"limit":10}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"held"}, got.Statuses)
	assert.Equal(t, 10, got.Limit)

	var resp dto.SweepResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 3, resp.Examined)
	assert.Equal(t, 1, resp.Confirmed)
}

func TestReconcileHeld_EmptyBody(t *testing.T) {
	ctrl := NewSweepController(&mockSweep{
		sweepFn: func(_ context.Context, req dto.SweepRequest, _ string) (*dto.SweepResult, error) {
			assert.Empty(t, req.Statuses)
			return &dto.SweepResult{}, nil
		},
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.ReconcileHeld(rec, httptest.NewRequest(http.MethodPost, "/admin/reconcile/held", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

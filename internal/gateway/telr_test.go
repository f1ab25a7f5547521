package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/config"
	apperrors "storefront/internal/errors"
)

func newTestTelrClient(t *testing.T, handler http.HandlerFunc) *TelrClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTelrClient(config.GatewayConfig{
		Endpoint: srv.URL,
		StoreID:  "12345",
		AuthKey:  "secret-key",
		TestMode: true,
		Timeout:  2 * time.Second,
	}, nil, zap.NewNop())
}

func decodeRequest(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNormalizeStatusCode(t *testing.T) {
	tests := []struct {
		code string
		want Status
	}{
		{"A", StatusAuthorized},
		{"H", StatusHeld},
		{"D", StatusDeclined},
		{"C", StatusCancelled},
		{"E", StatusUnknown},
		{"", StatusUnknown},
		{"a", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run("code "+tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatusCode(tt.code))
		})
	}
}

func TestCreateSession_Success(t *testing.T) {
	client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body := decodeRequest(t, r)
		assert.Equal(t, "create", body["method"])
		assert.Equal(t, "12345", body["store"])
		assert.Equal(t, "secret-key", body["authkey"])

		order := body["order"].(map[string]any)
		assert.Equal(t, "GZ-ABC123", order["cartid"])
		assert.Equal(t, "182.50", order["amount"])
		assert.Equal(t, "AED", order["currency"])
		assert.Equal(t, float64(1), order["test"])

		customer := body["customer"].(map[string]any)
		name := customer["name"].(map[string]any)
		assert.Equal(t, "Jane", name["forenames"])
		assert.Equal(t, "Doe", name["surname"])

		ret := body["return"].(map[string]any)
		assert.Equal(t, "https://shop.test/payment/success?orderId=GZ-ABC123", ret["authorised"])

		_, _ = w.Write([]byte(`{"method":"create","order":{"ref":"REF-1","url":"https://secure.telr.com/gateway/process.html?o=REF-1"}}`))
	})

	session, err := client.CreateSession(context.Background(), SessionRequest{
		OrderID:  "GZ-ABC123",
		Amount:   decimal.RequireFromString("182.5"),
		Currency: "AED",
		Customer: Customer{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Phone: "0501234567"},
		Return: ReturnURLs{
			Authorised: "https://shop.test/payment/success?orderId=GZ-ABC123",
			Declined:   "https://shop.test/payment/declined?orderId=GZ-ABC123",
			Cancelled:  "https://shop.test/payment/cancelled?orderId=GZ-ABC123",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "REF-1", session.Reference)
	assert.Equal(t, "https://secure.telr.com/gateway/process.html?o=REF-1", session.URL)
}

func TestCreateSession_FailuresAreRetryable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "provider error object",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"method":"create","error":{"message":"Invalid request","note":"Bad store"}}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>bad gateway</html>`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "missing url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"order":{"ref":"REF-1"}}`))
			},
		},
		{
			name: "missing order",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestTelrClient(t, tt.handler)

			session, err := client.CreateSession(context.Background(), SessionRequest{
				OrderID:  "GZ-1",
				Amount:   decimal.NewFromInt(10),
				Currency: "AED",
			})

			assert.Nil(t, session)
			ge, ok := apperrors.IsGatewayUnavailableError(err)
			require.True(t, ok, "expected GatewayUnavailableError, got %T", err)
			assert.Equal(t, "create", ge.Operation)
		})
	}
}

func TestCreateSession_Timeout(t *testing.T) {
	client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.CreateSession(ctx, SessionRequest{OrderID: "GZ-1", Amount: decimal.NewFromInt(1)})

	_, ok := apperrors.IsGatewayUnavailableError(err)
	assert.True(t, ok)
}

func TestVerify_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Status
		rawCode  string
	}{
		{name: "authorized string", response: `{"order":{"ref":"REF-1","status":"A","amount":"182.50","currency":"AED"}}`, want: StatusAuthorized, rawCode: "A"},
		{name: "held", response: `{"order":{"ref":"REF-1","status":"H"}}`, want: StatusHeld, rawCode: "H"},
		{name: "declined", response: `{"order":{"ref":"REF-1","status":"D"}}`, want: StatusDeclined, rawCode: "D"},
		{name: "cancelled", response: `{"order":{"ref":"REF-1","status":"C"}}`, want: StatusCancelled, rawCode: "C"},
		{name: "status object", response: `{"order":{"ref":"REF-1","status":{"code":"A","text":"Authorised"}}}`, want: StatusAuthorized, rawCode: "A"},
		{name: "numeric order status falls back to transaction", response: `{"order":{"ref":"REF-1","status":{"code":3,"text":"Paid"},"transaction":{"ref":"TX-1","status":"A"}}}`, want: StatusAuthorized, rawCode: "A"},
		{name: "unknown code", response: `{"order":{"ref":"REF-1","status":"X"}}`, want: StatusUnknown, rawCode: "X"},
		{name: "missing status", response: `{"order":{"ref":"REF-1"}}`, want: StatusUnknown, rawCode: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
				body := decodeRequest(t, r)
				assert.Equal(t, "check", body["method"])
				order := body["order"].(map[string]any)
				assert.Equal(t, "REF-1", order["ref"])
				assert.Equal(t, "GZ-1", order["cartid"])
				_, _ = w.Write([]byte(tt.response))
			})

			v, err := client.Verify(context.Background(), VerifyRequest{OrderID: "GZ-1", Reference: "REF-1"})

			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Status)
			assert.Equal(t, tt.rawCode, v.RawCode)
			assert.Equal(t, "REF-1", v.Reference)
		})
	}
}

func TestVerify_TransactionDetails(t *testing.T) {
	client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order":{"ref":"REF-1","status":"A","amount":"182.50","currency":"AED",
			"transaction":{"ref":"040012345678","status":"A","card":{"last4":"1111","type":"Visa"}}}}`))
	})

	v, err := client.Verify(context.Background(), VerifyRequest{OrderID: "GZ-1", Reference: "REF-1"})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("182.50").Equal(v.Amount))
	assert.Equal(t, "AED", v.Currency)
	assert.Equal(t, "040012345678", v.TransactionID)
	assert.Equal(t, "1111", v.CardLast4)
	assert.Equal(t, "Visa", v.CardType)
}

func TestVerify_NumericAmount(t *testing.T) {
	client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order":{"ref":"REF-1","status":"A","amount":99.9}}`))
	})

	v, err := client.Verify(context.Background(), VerifyRequest{OrderID: "GZ-1", Reference: "REF-1"})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("99.9").Equal(v.Amount))
}

func TestVerify_GatewayDown(t *testing.T) {
	client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	v, err := client.Verify(context.Background(), VerifyRequest{OrderID: "GZ-1", Reference: "REF-1"})

	assert.Nil(t, v)
	ge, ok := apperrors.IsGatewayUnavailableError(err)
	require.True(t, ok)
	assert.Equal(t, "check", ge.Operation)
}

func TestRefund_PartialAmount(t *testing.T) {
	client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeRequest(t, r)
		assert.Equal(t, "refund", body["method"])
		order := body["order"].(map[string]any)
		assert.Equal(t, "50.00", order["amount"])
		assert.Equal(t, "REF-1", order["ref"])
		_, _ = w.Write([]byte(`{"order":{"ref":"RF-77","status":{"code":"A","text":"Refunded"},"amount":"50.00"}}`))
	})

	amount := decimal.NewFromInt(50)
	refund, err := client.Refund(context.Background(), RefundRequest{OrderID: "GZ-1", Reference: "REF-1", Amount: &amount})

	require.NoError(t, err)
	assert.Equal(t, "RF-77", refund.Reference)
	assert.Equal(t, "Refunded", refund.Status)
	assert.True(t, amount.Equal(refund.Amount))
}

func TestRefund_FullAmountOmitsAmount(t *testing.T) {
	client := newTestTelrClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeRequest(t, r)
		order := body["order"].(map[string]any)
		_, hasAmount := order["amount"]
		assert.False(t, hasAmount)
		_, _ = w.Write([]byte(`{"order":{"ref":"RF-78","status":"A","amount":"182.50"}}`))
	})

	refund, err := client.Refund(context.Background(), RefundRequest{OrderID: "GZ-1", Reference: "REF-1"})

	require.NoError(t, err)
	assert.Equal(t, "RF-78", refund.Reference)
	assert.Equal(t, "A", refund.Status)
}

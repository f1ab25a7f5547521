package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/config"
	apperrors "storefront/internal/errors"
)

const (
	methodCreate = "create"
	methodCheck  = "check"
	methodRefund = "refund"

	maxResponseBytes = 1 << 20
)

type telrRequest struct {
	Method   string        `json:"method"`
	Store    string        `json:"store"`
	AuthKey  string        `json:"authkey"`
	Order    telrOrder     `json:"order"`
	Customer *telrCustomer `json:"customer,omitempty"`
	Return   *telrReturn   `json:"return,omitempty"`
}

type telrOrder struct {
	CartID      string `json:"cartid"`
	Test        int    `json:"test"`
	Amount      string `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
	Ref         string `json:"ref,omitempty"`
}

type telrCustomer struct {
	Email string   `json:"email"`
	Name  telrName `json:"name"`
	Phone string   `json:"phone,omitempty"`
}

type telrName struct {
	Forenames string `json:"forenames"`
	Surname   string `json:"surname"`
}

type telrReturn struct {
	Authorised string `json:"authorised"`
	Declined   string `json:"declined"`
	Cancelled  string `json:"cancelled"`
}

type telrResponse struct {
	Order *telrOrderResult `json:"order"`
	Error *telrError       `json:"error"`
}

type telrError struct {
	Message string `json:"message"`
	Note    string `json:"note"`
}

type telrOrderResult struct {
	Ref         string           `json:"ref"`
	URL         string           `json:"url"`
	CartID      string           `json:"cartid"`
	Status      telrStatus       `json:"status"`
	Amount      telrAmount       `json:"amount"`
	Currency    string           `json:"currency"`
	Transaction *telrTransaction `json:"transaction"`
}

type telrTransaction struct {
	Ref    string     `json:"ref"`
	Status telrStatus `json:"status"`
	Card   *telrCard  `json:"card"`
}

type telrCard struct {
	Last4 string `json:"last4"`
	Type  string `json:"type"`
}

// telrStatus accepts both the bare code ("A") and the {code, text} object.
type telrStatus struct {
	Code string
	Text string
}

func (s *telrStatus) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &s.Code)
	}

	var obj struct {
		Code json.RawMessage `json:"code"`
		Text string          `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	s.Text = obj.Text
	s.Code = strings.Trim(string(obj.Code), `"`)
	return nil
}

type telrAmount struct {
	decimal.Decimal
}

func (a *telrAmount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	a.Decimal = d
	return nil
}

// TelrClient implements Client over the provider's JSON order API.
type TelrClient struct {
	httpClient *http.Client
	endpoint   string
	storeID    string
	authKey    string
	testMode   bool
	logger     *zap.Logger
}

func NewTelrClient(cfg config.GatewayConfig, httpClient *http.Client, logger *zap.Logger) *TelrClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &TelrClient{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		storeID:    cfg.StoreID,
		authKey:    cfg.AuthKey,
		testMode:   cfg.TestMode,
		logger:     logger,
	}
}

func (c *TelrClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	forenames, surname := req.Customer.FirstName, req.Customer.LastName
	body := telrRequest{
		Method:  methodCreate,
		Store:   c.storeID,
		AuthKey: c.authKey,
		Order: telrOrder{
			CartID:      req.OrderID,
			Test:        c.testFlag(),
			Amount:      req.Amount.StringFixed(2),
			Currency:    req.Currency,
			Description: req.Description,
		},
		Customer: &telrCustomer{
			Email: req.Customer.Email,
			Name:  telrName{Forenames: forenames, Surname: surname},
			Phone: req.Customer.Phone,
		},
		Return: &telrReturn{
			Authorised: req.Return.Authorised,
			Declined:   req.Return.Declined,
			Cancelled:  req.Return.Cancelled,
		},
	}

	result, err := c.do(ctx, methodCreate, req.OrderID, body)
	if err != nil {
		return nil, err
	}

	if result.URL == "" || result.Ref == "" {
		return nil, apperrors.NewGatewayUnavailableError(methodCreate, "response missing session url or reference", nil)
	}

	return &Session{
		URL:       result.URL,
		Reference: result.Ref,
	}, nil
}

func (c *TelrClient) Verify(ctx context.Context, req VerifyRequest) (*Verification, error) {
	body := telrRequest{
		Method:  methodCheck,
		Store:   c.storeID,
		AuthKey: c.authKey,
		Order: telrOrder{
			CartID: req.OrderID,
			Test:   c.testFlag(),
			Ref:    req.Reference,
		},
	}

	result, err := c.do(ctx, methodCheck, req.OrderID, body)
	if err != nil {
		return nil, err
	}

	code := result.Status.Code
	status := NormalizeStatusCode(code)
	if status == StatusUnknown && result.Transaction != nil {
		if fallback := NormalizeStatusCode(result.Transaction.Status.Code); fallback != StatusUnknown {
			code, status = result.Transaction.Status.Code, fallback
		}
	}

	v := &Verification{
		Reference: result.Ref,
		Status:    status,
		RawCode:   code,
		Amount:    result.Amount.Decimal,
		Currency:  result.Currency,
	}
	if v.Reference == "" {
		v.Reference = req.Reference
	}
	if result.Transaction != nil {
		v.TransactionID = result.Transaction.Ref
		if result.Transaction.Card != nil {
			v.CardLast4 = result.Transaction.Card.Last4
			v.CardType = result.Transaction.Card.Type
		}
	}

	return v, nil
}

func (c *TelrClient) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	body := telrRequest{
		Method:  methodRefund,
		Store:   c.storeID,
		AuthKey: c.authKey,
		Order: telrOrder{
			CartID: req.OrderID,
			Test:   c.testFlag(),
			Ref:    req.Reference,
		},
	}
	if req.Amount != nil {
		body.Order.Amount = req.Amount.StringFixed(2)
	}

	result, err := c.do(ctx, methodRefund, req.OrderID, body)
	if err != nil {
		return nil, err
	}

	status := result.Status.Text
	if status == "" {
		status = result.Status.Code
	}

	return &Refund{
		Reference: result.Ref,
		Status:    status,
		Amount:    result.Amount.Decimal,
	}, nil
}

func (c *TelrClient) do(ctx context.Context, method, orderID string, body telrRequest) (*telrOrderResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternalError("encoding gateway request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewInternalError("building gateway request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("gateway request failed", zap.String("method", method), zap.String("orderId", orderID), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, apperrors.NewGatewayUnavailableError(method, "", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway responded", zap.String("method", method), zap.String("orderId", orderID), zap.Int("httpStatus", resp.StatusCode), zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewGatewayUnavailableError(method, fmt.Sprintf("unexpected http status %d", resp.StatusCode), nil)
	}

	var decoded telrResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, apperrors.NewGatewayUnavailableError(method, "malformed response", err)
	}

	if decoded.Error != nil {
		msg := decoded.Error.Message
		if decoded.Error.Note != "" {
			msg = fmt.Sprintf("%s (%s)", msg, decoded.Error.Note)
		}
		c.logger.Warn("gateway returned error", zap.String("method", method), zap.String("orderId", orderID), zap.String("gatewayError", msg))
		return nil, apperrors.NewGatewayUnavailableError(method, msg, nil)
	}

	if decoded.Order == nil {
		return nil, apperrors.NewGatewayUnavailableError(method, "response missing order", nil)
	}

	return decoded.Order, nil
}

func (c *TelrClient) testFlag() int {
	if c.testMode {
		return 1
	}
	return 0
}

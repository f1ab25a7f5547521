package errors

import (
	"errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

func IsUnauthorizedError(err error) (*UnauthorizedError, bool) {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// GatewayUnavailableError means the payment provider could not give an
// answer: transport failure, timeout, malformed body or an unknown status.
// It is always retryable and never a decline.
type GatewayUnavailableError struct {
	Operation string
	Message   string
	Cause     error
	// OrderID is filled in by callers that know which order was affected.
	OrderID string
}

func (e *GatewayUnavailableError) Error() string {
	msg := fmt.Sprintf("gateway %s unavailable", e.Operation)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *GatewayUnavailableError) Unwrap() error {
	return e.Cause
}

func NewGatewayUnavailableError(operation, message string, cause error) *GatewayUnavailableError {
	return &GatewayUnavailableError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

func IsGatewayUnavailableError(err error) (*GatewayUnavailableError, bool) {
	var ge *GatewayUnavailableError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// PersistenceError reports a store write that kept failing after local
// retries. PaymentCaptured marks the dangerous case where the gateway has
// authorized money the order row does not reflect yet.
type PersistenceError struct {
	OrderID         string
	PaymentCaptured bool
	Cause           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting order %s: %v", e.OrderID, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

func NewPersistenceError(orderID string, paymentCaptured bool, cause error) *PersistenceError {
	return &PersistenceError{
		OrderID:         orderID,
		PaymentCaptured: paymentCaptured,
		Cause:           cause,
	}
}

func IsPersistenceError(err error) (*PersistenceError, bool) {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidSymbol       = errors.New("invalid_symbol")
	ErrInvalidOrder        = errors.New("invalid_order")
	ErrInstrumentNotFound  = errors.New("instrument_not_found")
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrOrderNotCancellable = errors.New("order_not_cancellable")
	ErrInvalidParameters   = errors.New("invalid_parameters")
	ErrInvalidRequest      = errors.New("invalid_request")
)

// ValidationError represents an order or parameter validation failure.
// It unwraps to Kind so callers can match on the sentinel.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// InvalidOrder returns a ValidationError wrapping ErrInvalidOrder.
func InvalidOrder(format string, args ...any) *ValidationError {
	return &ValidationError{Kind: ErrInvalidOrder, Message: fmt.Sprintf(format, args...)}
}

// InvalidParameters returns a ValidationError wrapping ErrInvalidParameters.
func InvalidParameters(format string, args ...any) *ValidationError {
	return &ValidationError{Kind: ErrInvalidParameters, Message: fmt.Sprintf(format, args...)}
}

// InvalidRequest returns a ValidationError wrapping ErrInvalidRequest, for
// malformed query arguments such as pagination.
func InvalidRequest(format string, args ...any) *ValidationError {
	return &ValidationError{Kind: ErrInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// InvariantViolation reports a model bug detected during a tick, such as a
// non-positive price reaching the pricing step. The affected tick is
// aborted and the instrument is left as it was.
type InvariantViolation struct {
	Symbol string
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation on %s: %s", e.Symbol, e.Reason)
}

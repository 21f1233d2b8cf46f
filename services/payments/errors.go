package payments

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every *ValidationError
	ErrValidation = errors.New("validation failed")
	// ErrGatewayUnavailable means the processor could not be reached or failed with 5xx
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected means the processor declined the request
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	// ErrAlreadyFinalized is returned by a transition on a row that already left pending
	ErrAlreadyFinalized = errors.New("transaction already finalized")
	// ErrNotFound is returned for an unknown reference
	ErrNotFound = errors.New("transaction not found")
	// ErrReferenceExhausted means no unique reference could be allocated
	ErrReferenceExhausted = errors.New("unable to allocate a unique reference")
	// ErrAlreadyApplied is returned when a credit with the same idempotency key exists
	ErrAlreadyApplied = errors.New("credit already applied")
	// ErrInvalidTransition is returned when the target status is not final
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFinalized is returned when redacting a pending transaction
	ErrNotFinalized = errors.New("transaction is not finalized")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// GatewayError carries the processor's answer alongside the error kind, which
// is either ErrGatewayUnavailable or ErrGatewayRejected.
type GatewayError struct {
	Kind       error
	StatusCode int
	Message    string
	Payload    []byte
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: status %d: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Kind
}

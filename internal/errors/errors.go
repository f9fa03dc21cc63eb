package errors

import (
	"errors"
	"fmt"
)

// Base error types
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrPaymentRequired = errors.New("payment required")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnavailable     = errors.New("unavailable")
	ErrBadRequest      = errors.New("bad request")
)

// Kind categorizes a service error.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindPaymentRequired Kind = "payment_required"
	KindConflict        Kind = "conflict"
	KindUnauthorized    Kind = "unauthorized"
	KindUnavailable     Kind = "unavailable"
	KindBadRequest      Kind = "bad_request"
)

// ServiceError is a structured error for ledger, billing, and account operations.
type ServiceError struct {
	Kind      Kind
	Op        string // operation that failed (e.g. "credit_single_purchase")
	Err       error  // underlying error
	Retryable bool
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, string(e.Kind))
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches base error types by kind so callers can use errors.Is against
// the sentinels above regardless of how the error was constructed.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrPaymentRequired:
		return e.Kind == KindPaymentRequired
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrBadRequest:
		return e.Kind == KindBadRequest
	}
	return errors.Is(e.Err, target)
}

// New creates a ServiceError. Unavailable errors are retryable: the write
// path surfaces them loudly so the caller (or the billing provider's webhook
// retry) tries again.
func New(kind Kind, op string, err error) *ServiceError {
	return &ServiceError{
		Kind:      kind,
		Op:        op,
		Err:       err,
		Retryable: kind == KindUnavailable,
	}
}

// NotFound builds a not-found error for the given operation.
func NotFound(op string) *ServiceError {
	return New(KindNotFound, op, nil)
}

// Forbidden builds a forbidden error for the given operation.
func Forbidden(op string) *ServiceError {
	return New(KindForbidden, op, nil)
}

// Unauthorized builds an authorization failure. The message is deliberately
// generic so responses never reveal which field mismatched.
func Unauthorized(op string) *ServiceError {
	return New(KindUnauthorized, op, nil)
}

// Unavailable wraps a storage error on a write path.
func Unavailable(op string, err error) *ServiceError {
	return New(KindUnavailable, op, err)
}

// IsRetryable reports whether err is a retryable service error.
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

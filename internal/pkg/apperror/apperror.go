// internal/pkg/apperror/apperror.go
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for retry decisions
type Kind string

const (
	KindValidation   Kind = "validation"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindIntegrity    Kind = "integrity"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// Error codes exposed to API clients
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidState        = "INVALID_STATE"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeIntegrity           = "INTEGRITY_ERROR"
	CodeNotFound            = "RESOURCE_NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is the engine's error type. Details carries the failing line/item.
type Error struct {
	Kind    Kind              `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	for _, k := range []string{"line", "item_id", "warehouse_id", "field"} {
		if v, ok := e.Details[k]; ok {
			msg += fmt.Sprintf(" (%s=%s)", k, v)
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a single detail to the error
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap wraps an existing error
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// HTTPStatus maps the error kind to a response status
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidState, KindConflict:
		return http.StatusConflict
	case KindIntegrity:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a ValidationError
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, CodeValidation, format, args...)
}

// InvalidState creates an InvalidStateError
func InvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, CodeInvalidState, format, args...)
}

// Conflict creates a ConcurrencyConflict
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, CodeConcurrencyConflict, format, args...)
}

// Integrity creates an IntegrityError
func Integrity(format string, args ...any) *Error {
	return newError(KindIntegrity, CodeIntegrity, format, args...)
}

// NotFound creates a not found error for the named resource
func NotFound(resource string, id any) *Error {
	return newError(KindNotFound, CodeNotFound, "%s not found", resource).WithDetail("id", fmt.Sprint(id))
}

// Internal wraps an unexpected fault
func Internal(err error, format string, args ...any) *Error {
	return newError(KindInternal, CodeInternal, format, args...).Wrap(err)
}

// As extracts an *Error from the chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool   { return err != nil && KindOf(err) == KindValidation }
func IsInvalidState(err error) bool { return err != nil && KindOf(err) == KindInvalidState }
func IsConflict(err error) bool     { return err != nil && KindOf(err) == KindConflict }
func IsIntegrity(err error) bool    { return err != nil && KindOf(err) == KindIntegrity }
func IsNotFound(err error) bool     { return err != nil && KindOf(err) == KindNotFound }

// FromError converts any error to an *Error, hiding foreign faults behind an internal error
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(err, "an internal error occurred")
}

// Package apperror defines the error classes shared by services and handlers.
// Services wrap one of the sentinels; handlers map it to an HTTP status.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected marks an expected business-rule refusal such as
	// insufficient points or an exhausted voucher stock.
	ErrRejected = errors.New("rejected")
	ErrInternal = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel class
	Message string // human-readable message
	Field   string // optional: offending input field
	Cause   error  // optional: underlying failure, logged but never shown
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Rejected returns a business-rule refusal; message should state the shortfall.
func Rejected(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrRejected,
		Message: fmt.Sprintf(format, args...),
	}
}

func Internal(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: message,
		Cause:   cause,
	}
}

// Message returns the client-facing text of err. Errors that are not an
// AppError, and internal ones, collapse to a generic message.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && !errors.Is(appErr.Err, ErrInternal) {
		return appErr.Message
	}
	return "internal server error"
}

// Field returns the offending field of a validation error, if any.
func Field(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

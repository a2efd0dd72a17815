// Package apperror defines the error taxonomy shared by the store, service
// and HTTP layers.
//
// Services return *AppError values wrapping one of the sentinels below.
// Handlers map the sentinel to an HTTP status with errors.Is and show
// the Message to the client. Anything that is not an *AppError is an
// internal failure and is never shown verbatim.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden") // status map only; ownership failures are ErrNotFound
	ErrUnauthorized    = errors.New("unauthorized")
	ErrPayloadTooLarge = errors.New("payload too large")
)

type AppError struct {
	Err     error  // sentinel from the list above
	Message string // human-readable, safe to show to clients
	Field   string // optional: request field that caused the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource. The message never includes the
// id so that a private repo and an unknown id read the same.
func NotFound(resource string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on the given field,
// e.g. Conflict("username") → "username already taken".
func Conflict(field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already taken", field),
		Field:   field,
	}
}

// Unauthorized covers missing or invalid credentials. HTTP 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// PayloadTooLarge reports an upload over the configured ceiling. HTTP 413.
func PayloadTooLarge(limit int64) *AppError {
	return &AppError{
		Err:     ErrPayloadTooLarge,
		Message: fmt.Sprintf("file exceeds the %d byte limit", limit),
	}
}

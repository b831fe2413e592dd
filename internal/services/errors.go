package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error a service returns on purpose wraps one of these;
// anything else is an internal failure.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
)

// Error is a user-facing failure. Message is safe to return to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func notFound(what string) error {
	return newError(ErrNotFound, "%s not found", what)
}

func forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

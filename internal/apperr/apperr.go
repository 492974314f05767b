// Package apperr defines the error kinds shared by the storage, service and
// handler layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindPersistence   Kind = "PERSISTENCE"
	KindMissingSchema Kind = "MISSING_SCHEMA"
	KindWebhook       Kind = "WEBHOOK"
	KindConflict      Kind = "CONFLICT"
	KindUnauthorized  Kind = "UNAUTHORIZED"
	KindNoHousehold   Kind = "NO_HOUSEHOLD"
	KindInternal      Kind = "INTERNAL"
)

// Error carries a kind, the operation that failed and a user-facing message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error of the given kind.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message, nil)
}

func Conflict(op, message string) *Error {
	return New(KindConflict, op, message, nil)
}

// Persistence wraps a store failure; the store's own message is surfaced.
func Persistence(op string, err error) *Error {
	msg := "storage failure"
	if err != nil {
		msg = err.Error()
	}
	return New(KindPersistence, op, msg, err)
}

func MissingSchema(op string, err error) *Error {
	return New(KindMissingSchema, op, "relation does not exist", err)
}

// Webhook keeps the raw cause for logs; Message is what the caller may show.
func Webhook(op, message string, err error) *Error {
	return New(KindWebhook, op, message, err)
}

func NoHousehold(op string) *Error {
	return New(KindNoHousehold, op, "Household not found", nil)
}

func Unauthorized(op string) *Error {
	return New(KindUnauthorized, op, "Unauthorized", nil)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps a kind to the status code handlers respond with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNoHousehold:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindWebhook:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

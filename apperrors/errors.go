// Package apperrors defines the error kinds every layer of the gateway speaks.
// Handlers and middleware return *Error values; the Fiber ErrorHandler turns
// them into responses with a stable "error" field.
package apperrors

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindChecksumMismatch Kind = "checksum_mismatch"
	KindInFlightConflict Kind = "in_flight_conflict"
	KindStoreUnavailable Kind = "store_unavailable"
	KindPublishFailure   Kind = "publish_failure"
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindInternal         Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
	// Status overrides the kind's default HTTP status when non-zero.
	Status int
	// Fields carries per-field validation messages.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so errors.Is(err, apperrors.ErrNotFound) works for any
// not-found error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// BadRequest is a validation error answered with 400 instead of 422, used for
// requests that could not be parsed at all.
func BadRequest(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err, Status: http.StatusBadRequest}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

var (
	ErrValidation       = New(KindValidation, "validation failed")
	ErrChecksumMismatch = New(KindChecksumMismatch, "idempotency key reused with a different request")
	ErrInFlightConflict = New(KindInFlightConflict, "a request with this idempotency key is already being processed")
	ErrStoreUnavailable = New(KindStoreUnavailable, "datastore unavailable")
	ErrPublishFailure   = New(KindPublishFailure, "domain event publish failed")
	ErrNotFound         = New(KindNotFound, "not found")
)

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the response status for err.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if e.Status != 0 {
			return e.Status
		}
		return HTTPStatus(e.Kind)
	}
	return http.StatusInternalServerError
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindChecksumMismatch:
		return http.StatusUnprocessableEntity
	case KindInFlightConflict:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindPublishFailure:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a client may safely resend the same request.
func Retryable(kind Kind) bool {
	return kind == KindInFlightConflict || kind == KindStoreUnavailable
}

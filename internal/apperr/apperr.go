package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindInvalidInput     Kind = "INVALID_INPUT"
	KindInvariant        Kind = "DOMAIN_INVARIANT_VIOLATION"
	KindUnauthenticated  Kind = "UNAUTHENTICATED"
	KindInternal         Kind = "INTERNAL"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors of the same kind, so errors.Is(err, ErrNotFound) works for any
// NotFound error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is matching.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrInvariant        = &Error{Kind: KindInvariant}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func PermissionDenied(format string, args ...interface{}) *Error {
	return newf(KindPermissionDenied, format, args...)
}

func InvalidInput(format string, args ...interface{}) *Error {
	return newf(KindInvalidInput, format, args...)
}

// Invariant reports a broken upstream guarantee. It is surfaced as an internal error.
func Invariant(format string, args ...interface{}) *Error {
	return newf(KindInvariant, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return newf(KindUnauthenticated, format, args...)
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show to API clients. Internal and invariant
// errors are reduced to fallback.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	switch e.Kind {
	case KindInternal, KindInvariant:
		return fallback
	}
	if e.Message == "" {
		return fallback
	}
	return e.Message
}

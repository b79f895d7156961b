// Package apperrors defines the error kinds surfaced by template detection,
// registration and filling. Callers discriminate on Kind; the message and
// the wrapped cause are for humans and logs.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of failure.
type Kind string

const (
	KindMalformedDocument Kind = "MALFORMED_DOCUMENT"
	KindTemplateLoad      Kind = "TEMPLATE_LOAD_ERROR"
	KindTemplateNotFound  Kind = "TEMPLATE_NOT_FOUND"
	KindFontUnavailable   Kind = "FONT_UNAVAILABLE"
	KindMissingFormField  Kind = "MISSING_FORM_FIELD"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindStorage           Kind = "STORAGE_FAILURE"
)

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrMalformedDocument = &Error{Kind: KindMalformedDocument}
	ErrTemplateLoad      = &Error{Kind: KindTemplateLoad}
	ErrTemplateNotFound  = &Error{Kind: KindTemplateNotFound}
	ErrFontUnavailable   = &Error{Kind: KindFontUnavailable}
	ErrMissingFormField  = &Error{Kind: KindMissingFormField}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrStorage           = &Error{Kind: KindStorage}
)

// Error is a kinded error with an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to cause. The cause's text is kept so
// the original parser or storage message reaches the caller.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a kind to the status code the API layer responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindMalformedDocument:
		return http.StatusBadRequest
	case KindTemplateNotFound:
		return http.StatusNotFound
	case KindFontUnavailable, KindTemplateLoad:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

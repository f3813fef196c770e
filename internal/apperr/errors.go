package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and transports.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindStatusConflict
	KindValidation
	KindConcurrencyConflict
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindStatusConflict:
		return "status_conflict"
	case KindValidation:
		return "validation"
	case KindConcurrencyConflict:
		return "concurrency_conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// CodeConcurrentModification is the code carried by every concurrency conflict.
const CodeConcurrentModification = "CONCURRENT_MODIFICATION"

// Error is a classified application error.
// Sentinels are declared once per package; detailed errors wrap them via Wrapf
// so errors.Is keeps matching the sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code, message string) *Error       { return newError(KindNotFound, code, message) }
func StatusConflict(code, message string) *Error { return newError(KindStatusConflict, code, message) }
func Validation(code, message string) *Error     { return newError(KindValidation, code, message) }
func Unauthorized(code, message string) *Error   { return newError(KindUnauthorized, code, message) }
func Forbidden(code, message string) *Error      { return newError(KindForbidden, code, message) }

// ConcurrencyConflict reports a lock timeout or a version mismatch.
func ConcurrencyConflict(message string, cause error) *Error {
	return &Error{Kind: KindConcurrencyConflict, Code: CodeConcurrentModification, Message: message, Err: cause}
}

// Wrapf returns a new error with the sentinel's kind and code and a detailed message.
func Wrapf(sentinel *Error, format string, args ...any) *Error {
	return &Error{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// IsRetryable reports whether a caller may resend the same request.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrencyConflict
}

// HTTPStatus maps an error to the status code the REST adapter answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindStatusConflict, KindConcurrencyConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr defines the coded error type shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"

	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
)

// Error carries a Code, a user facing Message and optionally the underlying Cause.
// Reason narrows the code (e.g. TOKEN_EXPIRED) for callers that need to branch on it.
type Error struct {
	Code    Code
	Reason  string
	Message string
	Details interface{}
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code and, when the target sets one, on Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != "" {
		return e.Code == t.Code && e.Reason == t.Reason
	}
	return e.Code == t.Code && t.Message == ""
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

func BadRequest(format string, args ...interface{}) *Error {
	return New(CodeBadRequest, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(CodeUnauthorized, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(CodeForbidden, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...interface{}) *Error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

func Internal(err error) *Error {
	return Wrap(err, CodeInternal, "internal server error")
}

func (e *Error) WithReason(reason string) *Error {
	cp := *e
	cp.Reason = reason
	return &cp
}

func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Kind returns a bare error matching every *Error with the given code.
func Kind(code Code) error {
	return &Error{Code: code}
}

// From extracts an *Error from err, treating anything else as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func HTTPStatus(err error) int {
	switch From(err).Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

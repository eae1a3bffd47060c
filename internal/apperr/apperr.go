// Package apperr defines the error results returned by the business layer.
// Each error carries a machine-readable code that the transport passes to
// clients verbatim.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeBadUserInput    Code = "BAD_USER_INPUT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
	CodeInternal        Code = "INTERNAL_SERVER_ERROR"
)

// FieldError describes one failed input rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Code    Code
	Message string
	Details []FieldError
	// Err is the underlying cause, kept for logging only.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Extensions is the GraphQL "extensions" payload for this error.
func (e *Error) Extensions() map[string]any {
	ext := map[string]any{"code": string(e.Code)}
	if len(e.Details) > 0 {
		ext["details"] = e.Details
	}
	return ext
}

func Unauthenticated() *Error {
	return &Error{Code: CodeUnauthenticated, Message: "Not authenticated"}
}

func InvalidCredentials() *Error {
	return &Error{Code: CodeUnauthenticated, Message: "Invalid credentials"}
}

func BadInput(msg string, details ...FieldError) *Error {
	return &Error{Code: CodeBadUserInput, Message: msg, Details: details}
}

func Forbidden() *Error {
	return &Error{Code: CodeForbidden, Message: "Forbidden"}
}

func TooManyRequests() *Error {
	return &Error{Code: CodeTooManyRequests, Message: "Too many requests"}
}

// Internal wraps an infrastructure failure. The cause is never shown to clients.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "Internal server error", Err: err}
}

// CodeOf reports the code of err; anything that is not an *Error is internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

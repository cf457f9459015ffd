package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error type surfaced by the service layer. It carries a
// stable machine id (dotted, e.g. "export.submit.no_allowed_sources"), an
// HTTP status and a caller-safe message. The wrapped cause never crosses
// the API boundary.
type AppError struct {
	ID         string `json:"id"`
	StatusCode int    `json:"code"`
	Message    string `json:"detail"`

	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s]: %s: %v", e.ID, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s]: %s", e.ID, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

type Option func(*AppError)

// WithCause attaches an underlying error for logging; it is not exposed
// to callers.
func WithCause(cause error) Option {
	return func(e *AppError) { e.cause = cause }
}

// WithID overrides the default id of a constructor.
func WithID(id string) Option {
	return func(e *AppError) { e.ID = id }
}

func newError(id string, code int, msg string, opts ...Option) *AppError {
	e := &AppError{ID: id, StatusCode: code, Message: msg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func New(msg string, opts ...Option) *AppError {
	return newError("internal", http.StatusInternalServerError, msg, opts...)
}

func Internal(msg string, opts ...Option) *AppError {
	return newError("internal", http.StatusInternalServerError, msg, opts...)
}

func Validation(msg string, opts ...Option) *AppError {
	return newError("validation", http.StatusBadRequest, msg, opts...)
}

func Forbidden(msg string, opts ...Option) *AppError {
	return newError("forbidden", http.StatusForbidden, msg, opts...)
}

func NotFound(msg string, opts ...Option) *AppError {
	return newError("not_found", http.StatusNotFound, msg, opts...)
}

// Expired marks an artifact past its retention window. 410 so that clients
// can distinguish it from an unknown job.
func Expired(msg string, opts ...Option) *AppError {
	return newError("expired", http.StatusGone, msg, opts...)
}

// Is and As re-export the stdlib helpers so call sites only import this
// package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// Code returns the HTTP status for err, defaulting to 500 for errors that
// did not originate in this package.
func Code(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

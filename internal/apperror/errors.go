// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apperror defines the error taxonomy returned by API endpoints.
// Each error carries an HTTP status and a message that is safe to show to
// the client. The underlying cause is kept for server-side logging and is
// only exposed to clients in development mode.
package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types.
const (
	TypeValidation       = "validation_error"
	TypeUnauthenticated  = "unauthenticated"
	TypeForbidden        = "forbidden"
	TypeNotFound         = "not_found"
	TypeMethodNotAllowed = "method_not_allowed"
	TypeConflict         = "conflict"
	TypeTooLarge         = "payload_too_large"
	TypeLocked           = "locked"
	TypeRateLimited      = "rate_limited"
	TypeInternal         = "internal_error"
)

// AppError is an error with an HTTP status and a client-safe message.
type AppError struct {
	Code     int
	Type     string
	Message  string
	Fields   map[string]string // per-field validation messages
	Internal error

	// RetryAfter is sent as the Retry-After header when positive.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

func newError(code int, typ, message string) *AppError {
	return &AppError{Code: code, Type: typ, Message: message}
}

// Validation creates a 400 error for missing or malformed input.
func Validation(message string) *AppError {
	return newError(http.StatusBadRequest, TypeValidation, message)
}

// ValidationFields creates a 400 error carrying per-field messages.
func ValidationFields(fields map[string]string) *AppError {
	e := Validation("Validation failed")
	e.Fields = fields
	return e
}

// Unauthenticated creates a 401 error.
func Unauthenticated(message string) *AppError {
	return newError(http.StatusUnauthorized, TypeUnauthenticated, message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return newError(http.StatusForbidden, TypeForbidden, message)
}

// NotFound creates a 404 error.
func NotFound(message string) *AppError {
	return newError(http.StatusNotFound, TypeNotFound, message)
}

// MethodNotAllowed creates a 405 error.
func MethodNotAllowed() *AppError {
	return newError(http.StatusMethodNotAllowed, TypeMethodNotAllowed, "Method not allowed")
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return newError(http.StatusConflict, TypeConflict, message)
}

// TooLarge creates a 413 error.
func TooLarge(message string) *AppError {
	return newError(http.StatusRequestEntityTooLarge, TypeTooLarge, message)
}

// Locked creates a 423 error. The message must not reveal the remaining
// lockout duration.
func Locked(message string) *AppError {
	return newError(http.StatusLocked, TypeLocked, message)
}

// RateLimited creates a 429 error with a retry hint.
func RateLimited(message string, retryAfter time.Duration) *AppError {
	e := newError(http.StatusTooManyRequests, TypeRateLimited, message)
	e.RetryAfter = retryAfter
	return e
}

// Internal creates a 500 error. The client only ever sees a generic message.
func Internal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeInternal,
		Message:  "Internal server error",
		Internal: err,
	}
}

// From converts any error into an AppError. sql.ErrNoRows becomes NotFound,
// unique constraint violations become Conflict and values too long for their
// column become Validation. Everything else that is not already an AppError
// is treated as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("Not found")
	}
	if IsUniqueViolation(err) {
		e := Conflict("A record with the same values already exists")
		e.Internal = err
		return e
	}
	if IsDataTooLong(err) {
		e := Validation("A value is too long")
		e.Internal = err
		return e
	}
	return Internal(err)
}

// SafeMessage returns the client-safe message for err.
func SafeMessage(err error) string {
	return From(err).Message
}

// SafeCode returns the HTTP status for err.
func SafeCode(err error) int {
	return From(err).Code
}

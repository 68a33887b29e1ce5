// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *AppError
		code int
		typ  string
	}{
		{Validation("bad"), http.StatusBadRequest, TypeValidation},
		{Unauthenticated("who"), http.StatusUnauthorized, TypeUnauthenticated},
		{Forbidden("no"), http.StatusForbidden, TypeForbidden},
		{NotFound("gone"), http.StatusNotFound, TypeNotFound},
		{MethodNotAllowed(), http.StatusMethodNotAllowed, TypeMethodNotAllowed},
		{Conflict("dup"), http.StatusConflict, TypeConflict},
		{TooLarge("big"), http.StatusRequestEntityTooLarge, TypeTooLarge},
		{Locked("locked"), http.StatusLocked, TypeLocked},
		{RateLimited("slow", time.Minute), http.StatusTooManyRequests, TypeRateLimited},
		{Internal(errors.New("boom")), http.StatusInternalServerError, TypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.typ, tt.err.Type)
		})
	}
}

func TestFrom(t *testing.T) {
	cause := errors.New("database is locked")

	internal := From(fmt.Errorf("query: %w", cause))
	assert.Equal(t, http.StatusInternalServerError, internal.Code)
	assert.Equal(t, "Internal server error", internal.Message)
	assert.ErrorIs(t, internal, cause)

	assert.Equal(t, http.StatusNotFound, From(fmt.Errorf("get: %w", sql.ErrNoRows)).Code)

	conflict := From(errors.New("UNIQUE constraint failed: circulars.month, circulars.year"))
	assert.Equal(t, http.StatusConflict, conflict.Code)

	locked := Locked("locked")
	assert.Same(t, locked, From(fmt.Errorf("wrapped: %w", locked)))

	assert.Nil(t, From(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsUniqueViolation(&mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)")))
	assert.False(t, IsUniqueViolation(errors.New("no such table")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestFrom_DataTooLongIsValidation(t *testing.T) {
	tooLong := &mysql.MySQLError{Number: 1406, Message: "Data too long for column 'title' at row 1"}
	assert.True(t, IsDataTooLong(fmt.Errorf("insert news: %w", tooLong)))
	assert.False(t, IsDataTooLong(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsDataTooLong(errors.New("string or blob too big")))

	got := From(fmt.Errorf("insert news: %w", tooLong))
	assert.Equal(t, http.StatusBadRequest, got.Code)
	assert.Equal(t, "A value is too long", got.Message)
	assert.NotContains(t, got.Message, "title")
}

func TestSafeMessage(t *testing.T) {
	assert.Equal(t, "Internal server error", SafeMessage(errors.New("near \"SELEC\": syntax error")))
	assert.Equal(t, "Invalid CSRF token", SafeMessage(Forbidden("Invalid CSRF token")))
	assert.Equal(t, http.StatusForbidden, SafeCode(Forbidden("x")))
}

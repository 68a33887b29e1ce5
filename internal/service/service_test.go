// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/province-cms/internal/auth"
	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/testutil"
)

const testPassword = "correct horse battery"

// createUser inserts an account directly through the store.
func createUser(t *testing.T, db *sql.DB, username, role string) store.User {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	u, err := store.New(db, store.DialectSQLite).CreateUser(context.Background(), store.CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    testutil.NewClock().Now(),
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T {
	return &v
}

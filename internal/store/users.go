// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `id, username, email, password_hash, role, failed_attempts,
	locked_until, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.FailedAttempts,
		&u.LockedUntil,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// GetUserByID returns the user with the given id or sql.ErrNoRows.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername returns the user with the given username or sql.ErrNoRows.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// ListUsers returns all users ordered by username.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// CountUsers returns the number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CountUsersByRole returns the number of users holding role.
func (q *Queries) CountUsersByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, role).Scan(&n)
	return n, err
}

// CreateUserParams holds the values for CreateUser.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// CreateUser inserts a user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, failed_attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		arg.Username, arg.Email, arg.PasswordHash, arg.Role, arg.CreatedAt, arg.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

// UpdateUserParams holds the values for UpdateUser.
type UpdateUserParams struct {
	ID        int64
	Email     string
	Role      string
	UpdatedAt time.Time
}

// UpdateUser changes a user's email and role.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) error {
	return q.execOne(ctx,
		`UPDATE users SET email = ?, role = ?, updated_at = ? WHERE id = ?`,
		arg.Email, arg.Role, arg.UpdatedAt, arg.ID,
	)
}

// UpdateUserPassword replaces a user's password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, hash string, now time.Time) error {
	return q.execOne(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, now, id,
	)
}

// DeleteUser removes a user.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	return q.execOne(ctx, `DELETE FROM users WHERE id = ?`, id)
}

// IncrementFailedAttempts bumps the failed login counter and returns the new value.
func (q *Queries) IncrementFailedAttempts(ctx context.Context, id int64, now time.Time) (int64, error) {
	if err := q.execOne(ctx,
		`UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = ? WHERE id = ?`,
		now, id,
	); err != nil {
		return 0, err
	}
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT failed_attempts FROM users WHERE id = ?`, id).Scan(&n)
	return n, err
}

// LockUser sets the lockout deadline for a user at time now.
func (q *Queries) LockUser(ctx context.Context, id int64, until, now time.Time) error {
	return q.execOne(ctx,
		`UPDATE users SET locked_until = ?, updated_at = ? WHERE id = ?`,
		until, now, id,
	)
}

// ResetLoginFailures clears the failed counter and lockout for a user.
func (q *Queries) ResetLoginFailures(ctx context.Context, id int64, now time.Time) error {
	return q.execOne(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = ? WHERE id = ?`,
		now, id,
	)
}

// RecordLogin resets lockout state and stamps the last login time.
func (q *Queries) RecordLogin(ctx context.Context, id int64, now time.Time) error {
	return q.execOne(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
}

// ClearExpiredLocks resets every lock whose deadline has passed and
// returns the number of accounts unlocked.
func (q *Queries) ClearExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE locked_until IS NOT NULL AND locked_until <= ?`,
		now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne runs a statement that must affect exactly one row. sql.ErrNoRows is
// returned when nothing matched.
func (q *Queries) execOne(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

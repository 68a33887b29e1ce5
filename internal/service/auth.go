// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the business logic behind the API handlers.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/auth"
	"github.com/olegiv/province-cms/internal/store"
)

// Lockout policy.
const (
	MaxFailedAttempts = 5
	LockoutDuration   = 30 * time.Minute
)

// Login failures. The locked message never reveals the remaining time.
var (
	ErrInvalidCredentials = apperror.Unauthenticated("Invalid credentials")
	ErrAccountLocked      = apperror.Locked("Account temporarily locked. Please try again later.")
)

// AuthService verifies credentials and maintains per-account lockout.
type AuthService struct {
	queries          *store.Queries
	now              func() time.Time
	unknownUserDelay time.Duration
	sleep            func(ctx context.Context, d time.Duration)
}

// NewAuthService creates an auth service. A nil now uses time.Now.
func NewAuthService(queries *store.Queries, unknownUserDelay time.Duration, now func() time.Time) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		queries:          queries,
		now:              now,
		unknownUserDelay: unknownUserDelay,
		sleep:            sleepContext,
	}
}

// CheckLock returns ErrAccountLocked when username names an account
// whose lock has not yet expired. Unknown usernames are not reported.
func (s *AuthService) CheckLock(ctx context.Context, username string) error {
	user, err := s.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if s.locked(user) {
		return ErrAccountLocked
	}
	return nil
}

// Authenticate checks username and password. Five consecutive failures
// lock the account for LockoutDuration; a success resets the counter.
// Legacy or outdated password hashes are upgraded after a successful check.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	user, err := s.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		s.sleep(ctx, s.unknownUserDelay)
		slog.WarnContext(ctx, "login failed: unknown user", "username", username)
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("loading user: %w", err)
	}

	now := s.now().UTC()
	if s.locked(user) {
		slog.WarnContext(ctx, "login refused: account locked", "user_id", user.ID)
		return store.User{}, ErrAccountLocked
	}
	if user.LockedUntil.Valid {
		// Expired lock: start counting afresh.
		if err := s.queries.ResetLoginFailures(ctx, user.ID, now); err != nil {
			return store.User{}, fmt.Errorf("clearing expired lock: %w", err)
		}
		user.FailedAttempts = 0
		user.LockedUntil = sql.NullTime{}
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		slog.ErrorContext(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		return store.User{}, s.recordFailure(ctx, user, now)
	}

	if err := s.queries.RecordLogin(ctx, user.ID, now); err != nil {
		return store.User{}, fmt.Errorf("recording login: %w", err)
	}
	user.FailedAttempts = 0
	user.LastLoginAt = sql.NullTime{Time: now, Valid: true}

	if auth.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password, now)
	}
	return user, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user store.User, now time.Time) error {
	n, err := s.queries.IncrementFailedAttempts(ctx, user.ID, now)
	if err != nil {
		return fmt.Errorf("recording failed login: %w", err)
	}
	slog.WarnContext(ctx, "login failed: wrong password", "user_id", user.ID, "failed_attempts", n)

	if n >= MaxFailedAttempts {
		if err := s.queries.LockUser(ctx, user.ID, now.Add(LockoutDuration), now); err != nil {
			return fmt.Errorf("locking account: %w", err)
		}
		slog.WarnContext(ctx, "account locked due to failed attempts",
			"user_id", user.ID,
			"duration", LockoutDuration,
		)
	}
	return ErrInvalidCredentials
}

func (s *AuthService) rehash(ctx context.Context, userID int64, password string, now time.Time) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.ErrorContext(ctx, "password rehash failed", "user_id", userID, "error", err)
		return
	}
	if err := s.queries.UpdateUserPassword(ctx, userID, hash, now); err != nil {
		slog.ErrorContext(ctx, "storing rehashed password failed", "user_id", userID, "error", err)
		return
	}
	slog.InfoContext(ctx, "password hash upgraded", "user_id", userID)
}

func (s *AuthService) locked(u store.User) bool {
	return u.LockedUntil.Valid && s.now().Before(u.LockedUntil.Time)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

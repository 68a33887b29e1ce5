// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/auth"
	"github.com/olegiv/province-cms/internal/sanitize"
	"github.com/olegiv/province-cms/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,50}$`)

// UserView is the public shape of a user account.
type UserView struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	FailedAttempts int64      `json:"failed_attempts"`
	Locked         bool       `json:"locked"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateUserInput holds the fields of a new account.
type CreateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserInput changes the non-nil fields of an account.
type UpdateUserInput struct {
	ID       int64   `json:"id"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

// UserService manages admin and editor accounts.
type UserService struct {
	db      *sql.DB
	queries *store.Queries
	now     func() time.Time
}

// NewUserService creates a user service. A nil now uses time.Now.
func NewUserService(db *sql.DB, dialect store.Dialect, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{db: db, queries: store.New(db, dialect), now: now}
}

// View converts a stored user into its public shape.
func (s *UserService) View(u store.User) UserView {
	v := UserView{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Role:           u.Role,
		FailedAttempts: u.FailedAttempts,
		Locked:         u.LockedUntil.Valid && s.now().Before(u.LockedUntil.Time),
		CreatedAt:      u.CreatedAt.UTC(),
	}
	if u.LastLoginAt.Valid {
		t := u.LastLoginAt.Time.UTC()
		v.LastLoginAt = &t
	}
	return v
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]UserView, error) {
	users, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, s.View(u))
	}
	return views, nil
}

// Create adds an account.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (UserView, error) {
	username := strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(username) {
		return UserView{}, apperror.Validation("username must be 3-50 characters of letters, digits, dot, dash or underscore")
	}
	email, err := userEmail(in.Email)
	if err != nil {
		return UserView{}, err
	}
	if !auth.ValidRole(in.Role) {
		return UserView{}, apperror.Validation("role must be admin or editor")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return UserView{}, apperror.Validation(err.Error())
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return UserView{}, fmt.Errorf("hashing password: %w", err)
	}
	u, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	})
	if apperror.IsUniqueViolation(err) {
		return UserView{}, apperror.Conflict("Username already exists")
	}
	if err != nil {
		return UserView{}, fmt.Errorf("creating user: %w", err)
	}
	return s.View(u), nil
}

// Update changes an account. Admins cannot change their own role, and the
// last admin cannot be demoted.
func (s *UserService) Update(ctx context.Context, actorID int64, in UpdateUserInput) (UserView, error) {
	if in.Email == nil && in.Role == nil && in.Password == nil {
		return UserView{}, apperror.Validation("No fields to update")
	}
	u, err := s.queries.GetUserByID(ctx, in.ID)
	if err != nil {
		return UserView{}, apperror.From(err)
	}

	email, role := u.Email, u.Role
	if in.Email != nil {
		if email, err = userEmail(*in.Email); err != nil {
			return UserView{}, err
		}
	}
	if in.Role != nil && *in.Role != u.Role {
		if !auth.ValidRole(*in.Role) {
			return UserView{}, apperror.Validation("role must be admin or editor")
		}
		if u.ID == actorID {
			return UserView{}, apperror.Forbidden("You cannot change your own role")
		}
		if u.Role == auth.RoleAdmin {
			if err := s.ensureAnotherAdmin(ctx); err != nil {
				return UserView{}, err
			}
		}
		role = *in.Role
	}

	now := s.now().UTC()
	err = store.InTx(ctx, s.db, s.queries.Dialect(), func(q *store.Queries) error {
		if err := q.UpdateUser(ctx, store.UpdateUserParams{ID: u.ID, Email: email, Role: role, UpdatedAt: now}); err != nil {
			return err
		}
		if in.Password == nil {
			return nil
		}
		if err := auth.ValidatePassword(*in.Password); err != nil {
			return apperror.Validation(err.Error())
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		return q.UpdateUserPassword(ctx, u.ID, hash, now)
	})
	if err != nil {
		return UserView{}, err
	}

	u, err = s.queries.GetUserByID(ctx, u.ID)
	if err != nil {
		return UserView{}, err
	}
	return s.View(u), nil
}

// Delete removes an account. Admins cannot delete themselves or the last
// admin.
func (s *UserService) Delete(ctx context.Context, actorID, id int64) error {
	if id == actorID {
		return apperror.Forbidden("You cannot delete your own account")
	}
	u, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		return apperror.From(err)
	}
	if u.Role == auth.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	if err := s.queries.DeleteUser(ctx, id); err != nil {
		return apperror.From(err)
	}
	return nil
}

// Unlock clears the lockout and failure counter of an account.
func (s *UserService) Unlock(ctx context.Context, id int64) error {
	if _, err := s.queries.GetUserByID(ctx, id); err != nil {
		return apperror.From(err)
	}
	if err := s.queries.ResetLoginFailures(ctx, id, s.now().UTC()); err != nil {
		return apperror.From(err)
	}
	return nil
}

func (s *UserService) ensureAnotherAdmin(ctx context.Context) error {
	n, err := s.queries.CountUsersByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apperror.Conflict("At least one admin account must remain")
	}
	return nil
}

func userEmail(raw string) (string, error) {
	email, err := sanitize.Email(raw)
	if err != nil {
		return "", apperror.Validation("email " + strings.TrimPrefix(err.Error(), sanitize.ErrInvalid.Error()+": "))
	}
	return email, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/province-cms/internal/auth"
)

// SeedAdmin holds the credentials of the initial administrator.
type SeedAdmin struct {
	Username string
	Password string
	Email    string
}

// Seed creates the initial administrator when the users table is empty and
// stores default values for settings that are not yet present.
func Seed(ctx context.Context, q *Queries, admin SeedAdmin, defaults map[string]string) error {
	count, err := q.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}

	now := time.Now().UTC()
	if count == 0 {
		if admin.Password == "" {
			slog.Warn("no users exist and PROVINCE_ADMIN_PASSWORD is empty; skipping admin seed")
		} else {
			if err := auth.ValidatePassword(admin.Password); err != nil {
				return fmt.Errorf("seed admin password: %w", err)
			}
			hash, err := auth.HashPassword(admin.Password)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			user, err := q.CreateUser(ctx, CreateUserParams{
				Username:     admin.Username,
				Email:        admin.Email,
				PasswordHash: hash,
				Role:         auth.RoleAdmin,
				CreatedAt:    now,
			})
			if err != nil {
				return fmt.Errorf("creating admin user: %w", err)
			}
			slog.Info("created initial admin user", "id", user.ID, "username", user.Username)
		}
	}

	existing, err := q.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("listing settings: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.Name] = true
	}
	for name, value := range defaults {
		if have[name] {
			continue
		}
		if err := q.UpsertSetting(ctx, name, value, now); err != nil {
			return fmt.Errorf("seeding setting %s: %w", name, err)
		}
	}

	return nil
}

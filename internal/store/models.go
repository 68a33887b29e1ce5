// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

// User is a row of the users table.
type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string
	Role           string
	FailedAttempts int64
	LockedUntil    sql.NullTime
	LastLoginAt    sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuditEntry is a row of the audit_log table.
type AuditEntry struct {
	ID            int64
	Action        string
	Resource      string
	ResourceID    sql.NullInt64
	ActorID       sql.NullInt64
	ActorUsername string
	IP            string
	UserAgent     string
	UASummary     string
	Country       string
	Details       string
	CreatedAt     time.Time
}

// Setting is a row of the settings table.
type Setting struct {
	Name      string
	Value     string
	UpdatedAt time.Time
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// CreateAuditEntryParams holds the values for CreateAuditEntry.
type CreateAuditEntryParams struct {
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

// CreateAuditEntry appends an entry to the audit log.
func (q *Queries) CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, resource, resource_id, actor_id, actor_username,
			ip, user_agent, ua_summary, country, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Action, arg.Resource, arg.ResourceID, arg.ActorID, arg.ActorUsername,
		arg.IP, arg.UserAgent, arg.UASummary, arg.Country, arg.Details, arg.CreatedAt,
	)
	return err
}

// AuditFilter narrows ListAuditEntries and CountAuditEntries.
type AuditFilter struct {
	Resource string
	ActorID  int64
}

func (f AuditFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Resource != "" {
		conds = append(conds, "resource = ?")
		args = append(args, f.Resource)
	}
	if f.ActorID > 0 {
		conds = append(conds, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListAuditEntries returns audit entries newest first.
func (q *Queries) ListAuditEntries(ctx context.Context, f AuditFilter, limit, offset int64) ([]AuditEntry, error) {
	where, args := f.where()
	args = append(args, limit, offset)
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, action, resource, resource_id, actor_id, actor_username, ip,
			user_agent, ua_summary, country, details, created_at
		FROM audit_log`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.Resource,
			&e.ResourceID,
			&e.ActorID,
			&e.ActorUsername,
			&e.IP,
			&e.UserAgent,
			&e.UASummary,
			&e.Country,
			&e.Details,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// CountAuditEntries returns the number of entries matching f.
func (q *Queries) CountAuditEntries(ctx context.Context, f AuditFilter) (int64, error) {
	where, args := f.where()
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&n)
	return n, err
}

// DeleteAuditEntriesBefore prunes entries older than cutoff.
func (q *Queries) DeleteAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

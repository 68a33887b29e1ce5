// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// ListSettings returns all stored settings ordered by name.
func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT name, value, updated_at FROM settings ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Name, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// UpsertSetting inserts or replaces a setting value.
func (q *Queries) UpsertSetting(ctx context.Context, name, value string, now time.Time) error {
	query := `INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if q.dialect == DialectMySQL {
		query = `INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	}
	_, err := q.db.ExecContext(ctx, query, name, value, now)
	return err
}

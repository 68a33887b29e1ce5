// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Table describes a content table. Every identifier used to build SQL comes
// from a Table value declared in code, never from request input.
type Table struct {
	Name    string
	Columns []string // writable columns, excluding id and timestamps

	// SoftDelete tables carry a deleted_at column. Deleted rows are
	// excluded from every read.
	SoftDelete bool

	// VisibleColumn is a boolean column that hides a row from anonymous
	// readers when false. Empty means every row is public.
	VisibleColumn string

	OrderBy string
}

// Record is a single row keyed by column name.
type Record map[string]any

// ListOptions controls RecordStore.List.
type ListOptions struct {
	IncludeHidden bool
	Filters       map[string]any // exact-match filters on declared columns
	Limit         int64
	Offset        int64
}

// RecordStore runs generic CRUD statements against content tables.
type RecordStore struct {
	db *sqlx.DB
}

// NewRecordStore wraps db for generic record access.
func NewRecordStore(db *sql.DB, dialect Dialect) *RecordStore {
	driver := "sqlite3"
	if dialect == DialectMySQL {
		driver = "mysql"
	}
	return &RecordStore{db: sqlx.NewDb(db, driver)}
}

func (t Table) hasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

func (t Table) selectColumns() string {
	cols := append([]string{"id"}, t.Columns...)
	cols = append(cols, "created_at", "updated_at")
	if t.SoftDelete {
		cols = append(cols, "deleted_at")
	}
	return strings.Join(cols, ", ")
}

func (t Table) where(includeHidden bool, filters map[string]any) (string, []any, error) {
	var conds []string
	var args []any
	if t.SoftDelete {
		conds = append(conds, "deleted_at IS NULL")
	}
	if !includeHidden && t.VisibleColumn != "" {
		conds = append(conds, t.VisibleColumn+" = ?")
		args = append(args, true)
	}
	for _, col := range sortedKeys(filters) {
		if !t.hasColumn(col) {
			return "", nil, fmt.Errorf("table %s: unknown filter column %q", t.Name, col)
		}
		conds = append(conds, col+" = ?")
		args = append(args, filters[col])
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// List returns one page of rows and the total number of matching rows.
func (s *RecordStore) List(ctx context.Context, t Table, opts ListOptions) ([]Record, int64, error) {
	where, args, err := t.where(opts.IncludeHidden, opts.Filters)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM `+t.Name+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", t.Name, err)
	}

	query := `SELECT ` + t.selectColumns() + ` FROM ` + t.Name + where
	if t.OrderBy != "" {
		query += ` ORDER BY ` + t.OrderBy
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", t.Name, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]Record, 0)
	for rows.Next() {
		rec := make(map[string]any)
		if err := rows.MapScan(rec); err != nil {
			return nil, 0, fmt.Errorf("scanning %s: %w", t.Name, err)
		}
		items = append(items, normalize(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get returns the row with the given id or sql.ErrNoRows.
func (s *RecordStore) Get(ctx context.Context, t Table, id int64, includeHidden bool) (Record, error) {
	return s.getWhere(ctx, t, "id", id, includeHidden)
}

// GetBy returns the first row whose column equals value or sql.ErrNoRows.
func (s *RecordStore) GetBy(ctx context.Context, t Table, column string, value any, includeHidden bool) (Record, error) {
	if !t.hasColumn(column) {
		return nil, fmt.Errorf("table %s: unknown column %q", t.Name, column)
	}
	return s.getWhere(ctx, t, column, value, includeHidden)
}

func (s *RecordStore) getWhere(ctx context.Context, t Table, column string, value any, includeHidden bool) (Record, error) {
	where, args, err := t.where(includeHidden, nil)
	if err != nil {
		return nil, err
	}
	if where == "" {
		where = " WHERE " + column + " = ?"
	} else {
		where += " AND " + column + " = ?"
	}
	args = append(args, value)

	rec := make(map[string]any)
	err = s.db.QueryRowxContext(ctx, `SELECT `+t.selectColumns()+` FROM `+t.Name+where+` LIMIT 1`, args...).MapScan(rec)
	if err != nil {
		return nil, err
	}
	return normalize(rec), nil
}

// Exists reports whether any row, soft-deleted or not, has column equal
// to value. Unique indexes cover deleted rows too.
func (s *RecordStore) Exists(ctx context.Context, t Table, column string, value any) (bool, error) {
	if !t.hasColumn(column) {
		return false, fmt.Errorf("table %s: unknown column %q", t.Name, column)
	}
	var n int64
	err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM `+t.Name+` WHERE `+column+` = ?`, value).Scan(&n)
	return n > 0, err
}

// Insert adds a row and returns its id.
func (s *RecordStore) Insert(ctx context.Context, t Table, values Record, now time.Time) (int64, error) {
	cols := sortedKeys(values)
	if len(cols) == 0 {
		return 0, fmt.Errorf("table %s: insert without columns", t.Name)
	}
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		if !t.hasColumn(col) {
			return 0, fmt.Errorf("table %s: unknown column %q", t.Name, col)
		}
		args = append(args, values[col])
	}
	args = append(args, now, now)

	query := `INSERT INTO ` + t.Name + ` (` + strings.Join(cols, ", ") + `, created_at, updated_at) VALUES (` +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ") + `)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update changes the given columns of a live row. sql.ErrNoRows is
// returned when the row does not exist or is soft-deleted.
func (s *RecordStore) Update(ctx context.Context, t Table, id int64, values Record, now time.Time) error {
	cols := sortedKeys(values)
	if len(cols) == 0 {
		return fmt.Errorf("table %s: update without columns", t.Name)
	}
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		if !t.hasColumn(col) {
			return fmt.Errorf("table %s: unknown column %q", t.Name, col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, values[col])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)

	query := `UPDATE ` + t.Name + ` SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if t.SoftDelete {
		query += ` AND deleted_at IS NULL`
	}
	return s.execOne(ctx, query, args...)
}

// Delete removes a row. Soft-delete tables only get deleted_at stamped.
func (s *RecordStore) Delete(ctx context.Context, t Table, id int64, now time.Time) error {
	if t.SoftDelete {
		return s.execOne(ctx,
			`UPDATE `+t.Name+` SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
			now, now, id,
		)
	}
	return s.execOne(ctx, `DELETE FROM `+t.Name+` WHERE id = ?`, id)
}

// Restore clears deleted_at on a soft-deleted row.
func (s *RecordStore) Restore(ctx context.Context, t Table, id int64, now time.Time) error {
	if !t.SoftDelete {
		return fmt.Errorf("table %s: restore on hard-delete table", t.Name)
	}
	return s.execOne(ctx,
		`UPDATE `+t.Name+` SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`,
		now, id,
	)
}

// PurgeDeleted permanently removes rows soft-deleted before cutoff.
func (s *RecordStore) PurgeDeleted(ctx context.Context, t Table, cutoff time.Time) (int64, error) {
	if !t.SoftDelete {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+t.Name+` WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *RecordStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
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

// normalize converts driver byte slices to strings so records marshal as
// JSON text regardless of driver.
func normalize(rec map[string]any) Record {
	for k, v := range rec {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
		}
	}
	return rec
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

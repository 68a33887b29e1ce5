// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDB creates a migrated SQLite database in a temporary directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "province-test.db"))
	require.NoError(t, err, "NewDB")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db, DialectSQLite), "Migrate")
	return db
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestUsers_CreateAndLookup(t *testing.T) {
	q := New(testDB(t), DialectSQLite)
	ctx := context.Background()

	u, err := q.CreateUser(ctx, CreateUserParams{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "hash",
		Role:         "admin",
		CreatedAt:    t0,
	})
	require.NoError(t, err)
	assert.Positive(t, u.ID)
	assert.Equal(t, "admin", u.Username)
	assert.False(t, u.LockedUntil.Valid)

	got, err := q.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(t0))

	_, err = q.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = q.CreateUser(ctx, CreateUserParams{Username: "admin", PasswordHash: "h", Role: "editor", CreatedAt: t0})
	assert.Error(t, err, "duplicate username must fail")
}

func TestUsers_LockoutCounters(t *testing.T) {
	q := New(testDB(t), DialectSQLite)
	ctx := context.Background()

	u, err := q.CreateUser(ctx, CreateUserParams{Username: "ed", PasswordHash: "h", Role: "editor", CreatedAt: t0})
	require.NoError(t, err)

	for want := int64(1); want <= 3; want++ {
		n, err := q.IncrementFailedAttempts(ctx, u.ID, t0)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	lockedAt := t0.Add(time.Minute)
	until := lockedAt.Add(30 * time.Minute)
	require.NoError(t, q.LockUser(ctx, u.ID, until, lockedAt))
	got, err := q.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.LockedUntil.Valid)
	assert.True(t, got.LockedUntil.Time.Equal(until))
	assert.True(t, got.UpdatedAt.Equal(lockedAt), "updated_at is the lock time, not the deadline")

	n, err := q.ClearExpiredLocks(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "lock not yet expired")

	n, err = q.ClearExpiredLocks(ctx, t0.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = q.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.LockedUntil.Valid)
	assert.Zero(t, got.FailedAttempts)

	require.NoError(t, q.RecordLogin(ctx, u.ID, t0))
	got, _ = q.GetUserByID(ctx, u.ID)
	assert.True(t, got.LastLoginAt.Valid)

	assert.ErrorIs(t, q.LockUser(ctx, 999, until, lockedAt), sql.ErrNoRows)
}

func TestAuditEntries(t *testing.T) {
	q := New(testDB(t), DialectSQLite)
	ctx := context.Background()

	for i, res := range []string{"news", "news", "banners"} {
		require.NoError(t, q.CreateAuditEntry(ctx, CreateAuditEntryParams{
			Action:     "create",
			Resource:   res,
			ResourceID: sql.NullInt64{Int64: int64(i + 1), Valid: true},
			ActorID:    sql.NullInt64{Int64: 7, Valid: true},
			Details:    "{}",
			CreatedAt:  t0.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	items, err := q.ListAuditEntries(ctx, AuditFilter{Resource: "news"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].ResourceID.Int64, "newest first")

	n, err := q.CountAuditEntries(ctx, AuditFilter{ActorID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	deleted, err := q.DeleteAuditEntriesBefore(ctx, t0.Add(36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestSettings_Upsert(t *testing.T) {
	q := New(testDB(t), DialectSQLite)
	ctx := context.Background()

	require.NoError(t, q.UpsertSetting(ctx, "site_name", "Province", t0))
	require.NoError(t, q.UpsertSetting(ctx, "site_name", "Province of St. Joseph", t0.Add(time.Hour)))

	items, err := q.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Province of St. Joseph", items[0].Value)
}

func TestSeed(t *testing.T) {
	q := New(testDB(t), DialectSQLite)
	ctx := context.Background()

	admin := SeedAdmin{Username: "admin", Password: "initial-pass", Email: "a@example.com"}
	defaults := map[string]string{"site_name": "Province"}
	require.NoError(t, Seed(ctx, q, admin, defaults))

	u, err := q.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Role)

	require.NoError(t, q.UpsertSetting(ctx, "site_name", "Changed", t0))
	require.NoError(t, Seed(ctx, q, admin, defaults), "second seed is a no-op")

	n, _ := q.CountUsers(ctx)
	assert.Equal(t, int64(1), n)
	items, _ := q.ListSettings(ctx)
	assert.Equal(t, "Changed", items[0].Value, "existing settings are kept")
}

var testTable = Table{
	Name:          "news",
	Columns:       []string{"title", "slug", "summary", "content", "image_url", "published_at", "is_published"},
	SoftDelete:    true,
	VisibleColumn: "is_published",
	OrderBy:       "id DESC",
}

func TestRecords_CRUD(t *testing.T) {
	db := testDB(t)
	s := NewRecordStore(db, DialectSQLite)
	ctx := context.Background()

	id, err := s.Insert(ctx, testTable, Record{
		"title": "Jubilee", "slug": "jubilee", "summary": "", "content": "<p>x</p>",
		"image_url": "", "published_at": "2025-02-01", "is_published": true,
	}, t0)
	require.NoError(t, err)

	hiddenID, err := s.Insert(ctx, testTable, Record{
		"title": "Draft", "slug": "draft", "summary": "", "content": "",
		"image_url": "", "published_at": nil, "is_published": false,
	}, t0)
	require.NoError(t, err)

	items, total, err := s.List(ctx, testTable, ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "anonymous list hides drafts")
	require.Len(t, items, 1)
	assert.Equal(t, "Jubilee", items[0]["title"])

	_, total, err = s.List(ctx, testTable, ListOptions{IncludeHidden: true, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, err = s.Get(ctx, testTable, hiddenID, false)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	rec, err := s.GetBy(ctx, testTable, "slug", "jubilee", false)
	require.NoError(t, err)
	assert.Equal(t, id, rec["id"])

	require.NoError(t, s.Update(ctx, testTable, id, Record{"title": "Jubilee Year"}, t0.Add(time.Hour)))
	rec, err = s.Get(ctx, testTable, id, true)
	require.NoError(t, err)
	assert.Equal(t, "Jubilee Year", rec["title"])
	assert.Equal(t, "jubilee", rec["slug"], "untouched columns keep their value")

	require.NoError(t, s.Delete(ctx, testTable, id, t0.Add(2*time.Hour)))
	_, err = s.Get(ctx, testTable, id, true)
	assert.ErrorIs(t, err, sql.ErrNoRows, "soft-deleted rows are invisible")
	assert.ErrorIs(t, s.Update(ctx, testTable, id, Record{"title": "x"}, t0), sql.ErrNoRows)
	assert.ErrorIs(t, s.Delete(ctx, testTable, id, t0), sql.ErrNoRows, "second delete finds nothing")

	require.NoError(t, s.Restore(ctx, testTable, id, t0.Add(3*time.Hour)))
	_, err = s.Get(ctx, testTable, id, true)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, testTable, id, t0))
	purged, err := s.PurgeDeleted(ctx, testTable, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestRecords_RejectsUnknownColumns(t *testing.T) {
	s := NewRecordStore(testDB(t), DialectSQLite)
	ctx := context.Background()

	_, err := s.Insert(ctx, testTable, Record{"title": "x", "password_hash": "y"}, t0)
	assert.Error(t, err)

	err = s.Update(ctx, testTable, 1, Record{"id; DROP TABLE news": 1}, t0)
	assert.Error(t, err)

	_, _, err = s.List(ctx, testTable, ListOptions{Filters: map[string]any{"1=1 OR slug": "x"}, Limit: 1})
	assert.Error(t, err)
}

func TestRecords_UniqueViolation(t *testing.T) {
	s := NewRecordStore(testDB(t), DialectSQLite)
	ctx := context.Background()
	circulars := Table{Name: "circulars", Columns: []string{"title", "month", "year", "file_url", "summary"}, OrderBy: "year DESC, month DESC"}

	rec := Record{"title": "March", "month": 3, "year": 2025, "file_url": "/uploads/c.pdf", "summary": ""}
	_, err := s.Insert(ctx, circulars, rec, t0)
	require.NoError(t, err)

	_, err = s.Insert(ctx, circulars, rec, t0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")
	assert.False(t, errors.Is(err, sql.ErrNoRows))
}

func TestRecords_ExistsSeesDeletedRows(t *testing.T) {
	s := NewRecordStore(testDB(t), DialectSQLite)
	ctx := context.Background()

	id, err := s.Insert(ctx, testTable, Record{"title": "Gone", "slug": "gone", "is_published": true}, t0)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, testTable, id, t0))

	taken, err := s.Exists(ctx, testTable, "slug", "gone")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.Exists(ctx, testTable, "slug", "fresh")
	require.NoError(t, err)
	assert.False(t, taken)
}

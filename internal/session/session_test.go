// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/province-cms/internal/store"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Create sessions table required by sqlite3store
	_, err = db.Exec(`
		CREATE TABLE sessions (
			token TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expiry REAL NOT NULL
		);
		CREATE INDEX sessions_expiry_idx ON sessions(expiry);
	`)
	if err != nil {
		t.Fatalf("failed to create sessions table: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_DevMode(t *testing.T) {
	sm := New(nil, true, 30*time.Minute)

	if sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = false in dev mode")
	}
	if sm.Cookie.Name != CookieNameDev {
		t.Errorf("Cookie.Name = %q, want %q", sm.Cookie.Name, CookieNameDev)
	}
	if sm.Cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", sm.Cookie.SameSite)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("expected Cookie.HttpOnly = true")
	}
	if sm.IdleTimeout != 30*time.Minute {
		t.Errorf("IdleTimeout = %v, want 30m", sm.IdleTimeout)
	}
}

func TestNew_ProductionMode(t *testing.T) {
	sm := New(nil, false, 30*time.Minute)

	if !sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = true in production mode")
	}
	if sm.Cookie.Name != CookieNameProd {
		t.Errorf("Cookie.Name = %q, want %q", sm.Cookie.Name, CookieNameProd)
	}
	if sm.Cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", sm.Cookie.SameSite)
	}
	if sm.Cookie.Path != "/" {
		t.Errorf("expected Cookie.Path = '/', got %q", sm.Cookie.Path)
	}
}

func TestNewStore(t *testing.T) {
	db := setupTestDB(t)

	if _, ok := NewStore(db, store.DialectSQLite, nil).(*sqlite3store.SQLite3Store); !ok {
		t.Error("expected sqlite3store for the sqlite dialect")
	}
	if _, ok := NewStore(db, store.DialectMySQL, nil).(*mysqlstore.MySQLStore); !ok {
		t.Error("expected mysqlstore for the mysql dialect")
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	if _, ok := NewStore(db, store.DialectSQLite, rdb).(*goredisstore.RedisStore); !ok {
		t.Error("expected goredisstore when redis is configured")
	}
}

func TestManager_SharedRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	clock := newFakeClock()
	a := NewManager(New(goredisstore.New(rdb), true, 30*time.Minute), 30*time.Minute, clock.Now)
	b := NewManager(New(goredisstore.New(rdb), true, 30*time.Minute), 30*time.Minute, clock.Now)

	ctx := loadCtx(t, a)
	token, err := a.Issue(ctx, Identity{UserID: 7, Username: "clara", Role: "editor"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sessToken, _, err := a.SessionManager().Commit(ctx)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	other, err := b.SessionManager().Load(context.Background(), sessToken)
	if err != nil {
		t.Fatalf("Load on second instance: %v", err)
	}
	id, err := b.Authenticate(other)
	if err != nil {
		t.Fatalf("Authenticate on second instance: %v", err)
	}
	if id.Username != "clara" {
		t.Errorf("Username = %q, want clara", id.Username)
	}
	if !b.ValidCSRF(other, token) {
		t.Error("CSRF token should follow the session to the second instance")
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func loadCtx(t *testing.T, m *Manager) context.Context {
	t.Helper()
	ctx, err := m.SessionManager().Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return ctx
}

func TestManager_IssueAndAuthenticate(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(New(nil, true, 30*time.Minute), 30*time.Minute, clock.Now)
	ctx := loadCtx(t, m)

	if _, err := m.Current(ctx); err != ErrNoSession {
		t.Fatalf("Current() on empty session error = %v, want ErrNoSession", err)
	}

	token, err := m.Issue(ctx, Identity{UserID: 3, Username: "admin", Role: "admin"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(token) < 40 {
		t.Errorf("csrf token too short: %q", token)
	}

	clock.Advance(29 * time.Minute)
	id, err := m.Authenticate(ctx)
	if err != nil {
		t.Fatalf("Authenticate after 29m: %v", err)
	}
	if id.UserID != 3 || id.Username != "admin" || id.Role != "admin" {
		t.Errorf("unexpected identity %+v", id)
	}

	// Activity above reset the idle timer.
	clock.Advance(29 * time.Minute)
	if _, err := m.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate after refresh: %v", err)
	}

	clock.Advance(31 * time.Minute)
	if _, err := m.Authenticate(ctx); err != ErrExpired {
		t.Fatalf("Authenticate after 31m idle error = %v, want ErrExpired", err)
	}
	if _, err := m.Current(ctx); err != ErrNoSession {
		t.Errorf("expired session must be destroyed, got %v", err)
	}
}

func TestManager_CSRFToken(t *testing.T) {
	m := NewManager(New(nil, true, 30*time.Minute), 30*time.Minute, nil)
	ctx := loadCtx(t, m)

	if m.ValidCSRF(ctx, "") {
		t.Error("empty token must never validate")
	}
	if m.HasCSRFToken(ctx) {
		t.Error("fresh session has no token")
	}

	token, created, err := m.CSRFToken(ctx)
	if err != nil || !created {
		t.Fatalf("CSRFToken() = %q, %v, %v", token, created, err)
	}
	again, created, _ := m.CSRFToken(ctx)
	if created || again != token {
		t.Error("second call must return the stored token")
	}

	if !m.ValidCSRF(ctx, token) {
		t.Error("stored token rejected")
	}
	if m.ValidCSRF(ctx, token[:len(token)-1]+"x") {
		t.Error("tampered token accepted")
	}

	rotated, err := m.Issue(ctx, Identity{UserID: 1, Username: "a", Role: "editor"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if rotated == token {
		t.Error("Issue must rotate the csrf token")
	}
	if m.ValidCSRF(ctx, token) {
		t.Error("pre-login token must no longer validate")
	}
}

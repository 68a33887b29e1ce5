// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/auth"
	"github.com/olegiv/province-cms/internal/cache"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/ratelimit"
	"github.com/olegiv/province-cms/internal/service"
	"github.com/olegiv/province-cms/internal/session"
	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/testutil"
	"github.com/olegiv/province-cms/internal/version"
)

const testPassword = "correct horse battery"

// testEnv is a complete server over an in-memory database with a fake
// clock shared by sessions, lockout and the login limiter.
type testEnv struct {
	t       *testing.T
	db      *sql.DB
	clock   *testutil.Clock
	srv     *httptest.Server
	uploads string
	clients int
	users   int
}

func newTestEnv(t *testing.T, opts ...func(*RouterConfig)) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)
	clock := testutil.NewClock()
	q := store.New(db, store.DialectSQLite)
	uploads := t.TempDir()

	sm := session.New(nil, true, 30*time.Minute)
	settingsCache := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = settingsCache.Close() })

	h := New(Deps{
		DB:        db,
		Sessions:  session.NewManager(sm, 30*time.Minute, clock.Now),
		Auth:      service.NewAuthService(q, 0, clock.Now),
		Users:     service.NewUserService(db, store.DialectSQLite, clock.Now),
		Resources: service.NewResourceService(db, store.DialectSQLite, clock.Now),
		Settings:  service.NewSettingsService(db, store.DialectSQLite, settingsCache, clock.Now),
		Uploads:   service.NewUploadService(uploads, 5<<20, clock.Now),
		Audit:     audit.NewService(q, nil, clock.Now),
		Limiter:   ratelimit.New(ratelimit.NewMemoryStore(clock.Now), ratelimit.Config{Secret: []byte("test-fingerprint-key")}),
		Responder: endpoint.Responder{Development: true},
		Cache:     settingsCache,
		Version:   version.Info{Version: "v-test", GitCommit: "abc1234"},
		Now:       clock.Now,
	})

	cfg := RouterConfig{Development: true, UploadsDir: uploads}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv := httptest.NewServer(h.Router(cfg))
	t.Cleanup(srv.Close)

	return &testEnv{t: t, db: db, clock: clock, srv: srv, uploads: uploads}
}

// createUser inserts an account with testPassword.
func (e *testEnv) createUser(username, role string) store.User {
	e.t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(e.t, err)
	u, err := store.New(e.db, store.DialectSQLite).CreateUser(context.Background(), store.CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    e.clock.Now(),
	})
	require.NoError(e.t, err)
	return u
}

// loginAs creates a fresh account with role and returns a signed-in client.
func (e *testEnv) loginAs(role string) (*client, store.User) {
	e.t.Helper()
	e.users++
	u := e.createUser(fmt.Sprintf("%s%d", role, e.users), role)
	c := e.newClient()
	res := c.login(u.Username, testPassword)
	require.Equal(e.t, http.StatusOK, res.code, res.raw)
	return c, u
}

func (e *testEnv) count(table string) int {
	e.t.Helper()
	var n int
	require.NoError(e.t, e.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// client is a browser-like caller: it keeps cookies and remembers the
// last CSRF token it was handed. Each client has its own User-Agent and
// therefore its own login fingerprint.
type client struct {
	e    *testEnv
	http *http.Client
	ua   string
	csrf string
}

func (e *testEnv) newClient() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	e.clients++
	return &client{
		e:    e,
		http: &http.Client{Jar: jar},
		ua:   fmt.Sprintf("handler-test/%d", e.clients),
	}
}

type response struct {
	code   int
	header http.Header
	body   map[string]any
	raw    string
}

func (r response) errorMessage() string {
	msg, _ := r.body["error"].(string)
	return msg
}

func (r response) object(key string) map[string]any {
	m, _ := r.body[key].(map[string]any)
	return m
}

func (r response) items() []any {
	items, _ := r.body["items"].([]any)
	return items
}

func (c *client) request(method, path string, body io.Reader, contentType string, withCSRF bool) response {
	c.e.t.Helper()
	req, err := http.NewRequest(method, c.e.srv.URL+path, body)
	require.NoError(c.e.t, err)
	req.Header.Set("User-Agent", c.ua)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if withCSRF && c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.e.t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.e.t, err)

	res := response{code: resp.StatusCode, header: resp.Header, raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.e.t, json.Unmarshal(raw, &res.body), string(raw))
	}
	if token := resp.Header.Get("X-CSRF-Token"); token != "" {
		c.csrf = token
	}
	return res
}

func (c *client) json(method, path string, body any, withCSRF bool) response {
	c.e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.e.t, err)
		r = bytes.NewReader(b)
	}
	return c.request(method, path, r, "application/json", withCSRF)
}

func (c *client) get(path string) response {
	c.e.t.Helper()
	return c.request(http.MethodGet, path, nil, "", false)
}

// send issues a mutating JSON request carrying the CSRF header.
func (c *client) send(method, path string, body any) response {
	c.e.t.Helper()
	return c.json(method, path, body, true)
}

func (c *client) login(username, password string) response {
	c.e.t.Helper()
	return c.json(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, false)
}

func number(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

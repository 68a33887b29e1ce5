// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the scs session manager and implements the
// session contract: identity issuance, idle timeout and the per-session
// CSRF token.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/province-cms/internal/store"
)

// Cookie names. The __Host- prefix requires Secure, Path=/ and no Domain,
// so it is only used in production.
const (
	CookieNameDev  = "province_session"
	CookieNameProd = "__Host-province_session"
)

// MaxLifetime caps a session regardless of activity.
const MaxLifetime = 12 * time.Hour

// NewStore picks the session store. Redis wins when a client is given so
// that several instances share sessions; otherwise sessions live in the
// application database.
func NewStore(db *sql.DB, dialect store.Dialect, rdb *redis.Client) scs.Store {
	switch {
	case rdb != nil:
		return goredisstore.New(rdb)
	case dialect == store.DialectMySQL:
		return mysqlstore.New(db)
	default:
		return sqlite3store.New(db)
	}
}

// New creates a session manager. A nil st keeps the scs in-memory store.
func New(st scs.Store, isDev bool, idleTimeout time.Duration) *scs.SessionManager {
	sm := scs.New()
	if st != nil {
		sm.Store = st
	}

	sm.Lifetime = MaxLifetime
	sm.IdleTimeout = idleTimeout
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true

	if isDev {
		sm.Cookie.Name = CookieNameDev
		sm.Cookie.SameSite = http.SameSiteLaxMode
		sm.Cookie.Secure = false
	} else {
		sm.Cookie.Name = CookieNameProd
		sm.Cookie.SameSite = http.SameSiteStrictMode
		sm.Cookie.Secure = true
	}

	return sm
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/auth"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/logging"
	"github.com/olegiv/province-cms/internal/session"
)

// Gate failures.
var (
	ErrAuthRequired     = apperror.Unauthenticated("Authentication required")
	ErrSessionExpired   = apperror.Unauthenticated("Session expired")
	ErrInsufficientRole = apperror.Forbidden("Insufficient permissions")
)

// Gates builds the per-route access and CSRF middleware.
type Gates struct {
	Sessions  *session.Manager
	Responder endpoint.Responder
}

// RequireAccess returns the middleware enforcing level. Public routes still
// resolve a valid session so handlers can tell staff from visitors, but
// never reject and never bump the idle timer.
func (g Gates) RequireAccess(level endpoint.Access) func(http.Handler) http.Handler {
	if level == endpoint.Public {
		return g.OptionalIdentity
	}
	return g.RequireRole(level.Role())
}

// RequireAuth rejects requests without a live session and bumps the
// session's last activity.
func (g Gates) RequireAuth(next http.Handler) http.Handler {
	return g.RequireRole("")(next)
}

// RequireAdmin is RequireRole(auth.RoleAdmin).
func (g Gates) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireRole(auth.RoleAdmin)(next)
}

// RequireRole creates middleware that requires a live session whose role
// ranks at least minRole. An empty minRole accepts any authenticated user.
func (g Gates) RequireRole(minRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.Sessions.Authenticate(r.Context())
			switch {
			case errors.Is(err, session.ErrExpired):
				slog.InfoContext(r.Context(), "session expired", "path", r.URL.Path)
				g.Responder.Error(w, r, ErrSessionExpired)
				return
			case errors.Is(err, session.ErrNoSession):
				g.Responder.Error(w, r, ErrAuthRequired)
				return
			case err != nil:
				g.Responder.Error(w, r, err)
				return
			}

			if minRole != "" && !auth.HasRole(id.Role, minRole) {
				slog.WarnContext(r.Context(), "access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", id.UserID,
					"user_role", id.Role,
					"required_role", minRole,
				)
				g.Responder.Error(w, r, ErrInsufficientRole)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r, id)))
		})
	}
}

// OptionalIdentity attaches the session identity when there is a live one.
func (g Gates) OptionalIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := g.Sessions.Current(r.Context()); err == nil {
			r = r.WithContext(withIdentity(r, id))
		}
		next.ServeHTTP(w, r)
	})
}

func withIdentity(r *http.Request, id session.Identity) context.Context {
	ctx := endpoint.WithIdentity(r.Context(), id)
	return logging.WithUser(ctx, id.Username)
}

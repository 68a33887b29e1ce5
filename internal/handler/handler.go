// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler implements the JSON API endpoints and the route table
// that binds them to their access and CSRF gates.
package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/cache"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/middleware"
	"github.com/olegiv/province-cms/internal/ratelimit"
	"github.com/olegiv/province-cms/internal/service"
	"github.com/olegiv/province-cms/internal/session"
	"github.com/olegiv/province-cms/internal/version"
)

// Deps holds everything the endpoints need.
type Deps struct {
	DB        *sql.DB
	Sessions  *session.Manager
	Auth      *service.AuthService
	Users     *service.UserService
	Resources *service.ResourceService
	Settings  *service.SettingsService
	Uploads   *service.UploadService
	Audit     *audit.Service
	Limiter   *ratelimit.Limiter // login attempts per fingerprint
	Responder endpoint.Responder
	Cache     cache.Cache // optional, adds a health check
	Version   version.Info
	Now       func() time.Time
}

// Handler serves the API.
type Handler struct {
	Deps
	gates   middleware.Gates
	started time.Time
}

// New creates a handler. A nil Now uses time.Now.
func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		Deps:    d,
		gates:   middleware.Gates{Sessions: d.Sessions, Responder: d.Responder},
		started: d.Now(),
	}
}

// Routes returns the route table.
func (h *Handler) Routes() []endpoint.Route {
	routes := []endpoint.Route{
		{Method: http.MethodGet, Pattern: "/health", Access: endpoint.Public, Handler: h.Health},

		{Method: http.MethodPost, Pattern: "/api/auth/login", Access: endpoint.Public, Handler: h.Login},
		{Method: http.MethodPost, Pattern: "/api/auth/logout", Access: endpoint.Public, CSRF: endpoint.CSRFIfIssued, Handler: h.Logout},
		{Method: http.MethodGet, Pattern: "/api/auth/check", Access: endpoint.Public, Handler: h.Check, Unthrottled: true},

		{Method: http.MethodGet, Pattern: "/api/settings/list", Access: endpoint.Public, Handler: h.ListSettings},
		{Method: http.MethodPut, Pattern: "/api/settings/update", Access: endpoint.Admin, CSRF: endpoint.CSRFRequired, Handler: h.UpdateSettings},
		{Method: http.MethodPatch, Pattern: "/api/settings/update", Access: endpoint.Admin, CSRF: endpoint.CSRFRequired, Handler: h.UpdateSettings},

		{Method: http.MethodGet, Pattern: "/api/users/list", Access: endpoint.Admin, Handler: h.ListUsers},
		{Method: http.MethodPost, Pattern: "/api/users/create", Access: endpoint.Admin, CSRF: endpoint.CSRFRequired, Handler: h.CreateUser},
		{Method: http.MethodPatch, Pattern: "/api/users/update", Access: endpoint.Admin, CSRF: endpoint.CSRFRequired, Handler: h.UpdateUser},
		{Method: http.MethodDelete, Pattern: "/api/users/delete", Access: endpoint.Admin, CSRF: endpoint.CSRFRequired, Handler: h.DeleteUser},
		{Method: http.MethodPost, Pattern: "/api/users/unlock", Access: endpoint.Admin, CSRF: endpoint.CSRFRequired, Handler: h.UnlockUser},

		{Method: http.MethodGet, Pattern: "/api/audit/list", Access: endpoint.Admin, Handler: h.ListAudit},

		{
			Method:    http.MethodPost,
			Pattern:   "/api/upload/image",
			Access:    endpoint.Admin,
			CSRF:      endpoint.CSRFRequired,
			Handler:   h.UploadImage,
			MaxBody:   h.Uploads.MaxBytes() + multipartOverhead,
			NoTimeout: true,
		},
	}
	return append(routes, h.resourceRoutes()...)
}

// Mount registers the route table on r. Each route runs the API limiter,
// the request timeout, its access gate, its CSRF gate and then the handler.
// Routes opt out of the limiter and the timeout through their flags.
func (h *Handler) Mount(r chi.Router, limiter *middleware.GlobalRateLimiter, timeout time.Duration) {
	newContext := func(w http.ResponseWriter, req *http.Request) *endpoint.Context {
		return endpoint.NewContext(w, req, h.Sessions)
	}
	var throttle func(http.Handler) http.Handler
	if limiter != nil {
		throttle = limiter.Middleware()
	}
	withTimeout := middleware.Timeout(timeout)

	for _, rt := range h.Routes() {
		var next http.Handler = h.Responder.Handle(rt.Handler, newContext)
		next = h.gates.CSRF(rt.CSRF)(next)
		next = h.gates.RequireAccess(rt.Access)(next)
		next = limitBody(rt.BodyLimit(), next)
		if !rt.NoTimeout {
			next = withTimeout(next)
		}
		if throttle != nil && !rt.Unthrottled {
			next = throttle(next)
		}
		r.Method(rt.Method, rt.Pattern, next)
	}
	r.MethodNotAllowed(h.Responder.MethodNotAllowed)
}

func limitBody(limit int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

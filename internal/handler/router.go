// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/olegiv/province-cms/internal/middleware"
)

// DefaultRequestTimeout bounds API requests when none is configured.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig configures the global middleware stack.
type RouterConfig struct {
	Development bool

	// AccessLog enables chi's request logger.
	AccessLog bool

	// CORSOrigins are the SPA dev server origins allowed to call the API
	// with credentials. They are also trusted by the cross-origin guard.
	CORSOrigins []string

	// CSRFKey is handed to the cross-origin guard.
	CSRFKey []byte

	// APILimiter, when set, throttles the route table per client IP.
	// The session check is exempt.
	APILimiter *middleware.GlobalRateLimiter

	UploadsDir string
	SPADir     string

	// SiteURL is the public origin used in the sitemap. Empty means the
	// request host.
	SiteURL string

	// DisallowCrawlers blocks every crawler in robots.txt.
	DisallowCrawlers bool

	// RequestTimeout bounds API routes other than uploads. Static files
	// are not bounded.
	RequestTimeout time.Duration
}

// Router builds the complete HTTP handler: global middleware, the session
// loader, the API route table and the static file routes.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if cfg.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.Development)))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"X-CSRF-Token", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Static files are served without the request timeout.
	if cfg.UploadsDir != "" {
		r.Handle("/uploads/*", UploadsHandler(cfg.UploadsDir))
	}
	timed := r.With(middleware.Timeout(cfg.RequestTimeout))
	timed.Get("/robots.txt", Robots(cfg.SiteURL, cfg.DisallowCrawlers))
	timed.Get("/sitemap.xml", h.Sitemap(cfg.SiteURL))

	r.Group(func(r chi.Router) {
		r.Use(h.Sessions.SessionManager().LoadAndSave)
		r.Use(middleware.CrossOrigin(middleware.CrossOriginConfig{
			AuthKey:        cfg.CSRFKey,
			TrustedOrigins: cfg.CORSOrigins,
			Responder:      h.Responder,
		}))
		h.Mount(r, cfg.APILimiter, cfg.RequestTimeout)
	})

	if cfg.SPADir != "" {
		r.NotFound(SPAHandler(cfg.SPADir, h.Responder).ServeHTTP)
	} else {
		r.NotFound(h.Responder.NotFound)
	}
	r.MethodNotAllowed(h.Responder.MethodNotAllowed)
	return r
}

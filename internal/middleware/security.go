// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides the HTTP middleware of the province API:
// security headers, the access and CSRF gates, the cross-origin guard,
// per-IP rate limiting and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/olegiv/province-cms/internal/util"
)

// SecurityHeadersConfig holds configuration for security headers.
type SecurityHeadersConfig struct {
	// IsDevelopment disables HSTS.
	IsDevelopment bool

	ContentSecurityPolicy string

	// HSTSMaxAge is the max-age for Strict-Transport-Security in seconds.
	// Zero disables HSTS.
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool

	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string
}

// DefaultSecurityHeadersConfig returns the headers sent with every
// response. The API and the SPA are same-origin, so the policy is tight.
func DefaultSecurityHeadersConfig(isDev bool) SecurityHeadersConfig {
	return SecurityHeadersConfig{
		IsDevelopment: isDev,
		ContentSecurityPolicy: buildCSP([][2]string{
			{"default-src", "'self'"},
			{"img-src", "'self' data:"},
			{"style-src", "'self' 'unsafe-inline'"},
			{"object-src", "'none'"},
			{"base-uri", "'self'"},
			{"form-action", "'self'"},
			{"frame-ancestors", "'none'"},
		}),
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
		FrameOptions:          "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy: buildPermissionsPolicy([][2]string{
			{"accelerometer", "()"},
			{"camera", "()"},
			{"geolocation", "()"},
			{"gyroscope", "()"},
			{"microphone", "()"},
			{"payment", "()"},
			{"usb", "()"},
			{"browsing-topics", "()"},
		}),
	}
}

func buildCSP(directives [][2]string) string {
	parts := make([]string, len(directives))
	for i, d := range directives {
		parts[i] = d[0] + " " + d[1]
	}
	return strings.Join(parts, "; ")
}

func buildPermissionsPolicy(policies [][2]string) string {
	parts := make([]string, len(policies))
	for i, p := range policies {
		parts[i] = p[0] + "=" + p[1]
	}
	return strings.Join(parts, ", ")
}

// SecurityHeaders returns a middleware that adds security headers to
// responses. HSTS is only sent for TLS requests outside development.
func SecurityHeaders(cfg SecurityHeadersConfig) func(http.Handler) http.Handler {
	hsts := ""
	if cfg.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if cfg.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}
			if !cfg.IsDevelopment && hsts != "" && util.IsTLS(r) {
				h.Set("Strict-Transport-Security", hsts)
			}
			if cfg.FrameOptions != "" {
				h.Set("X-Frame-Options", cfg.FrameOptions)
			}
			h.Set("X-Content-Type-Options", "nosniff")
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", cfg.PermissionsPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}
}

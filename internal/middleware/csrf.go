// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"filippo.io/csrf/gorilla"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/util"
)

// CSRFHeader carries the session's CSRF token in both directions.
const CSRFHeader = "X-CSRF-Token"

// CSRFField is the body field accepted when the header is absent.
const CSRFField = "csrf_token"

// multipartMemory is the in-memory part of a parsed multipart form; larger
// file parts spill to disk.
const multipartMemory = 8 << 20

// ErrInvalidCSRF is returned when a mutating request lacks a valid token.
var ErrInvalidCSRF = apperror.Forbidden("Invalid CSRF token")

// CrossOriginConfig configures the cross-origin request guard.
type CrossOriginConfig struct {
	// AuthKey is required by the gorilla-compatible API and unused by the
	// Fetch-metadata implementation.
	AuthKey []byte

	// TrustedOrigins are host[:port] values allowed to send cross-origin
	// mutating requests, normally the SPA dev servers.
	TrustedOrigins []string

	Responder endpoint.Responder
}

// CrossOrigin returns a middleware rejecting cross-site mutating browser
// requests based on Sec-Fetch-Site and Origin. It runs in front of the
// session token gate.
func CrossOrigin(cfg CrossOriginConfig) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := "unknown"
			if err := csrf.FailureReason(r); err != nil {
				reason = err.Error()
			}
			slog.WarnContext(r.Context(), "cross-origin request rejected",
				"reason", reason,
				"method", r.Method,
				"path", r.URL.Path,
				"origin", r.Header.Get("Origin"),
				"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
			)
			cfg.Responder.Error(w, r, ErrInvalidCSRF)
		})),
	}
	if origins := originHosts(cfg.TrustedOrigins); len(origins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(origins))
	}
	return csrf.Protect(cfg.AuthKey, opts...)
}

// originHosts turns "http://localhost:5173" into "localhost:5173".
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		if o != "" {
			hosts = append(hosts, o)
		}
	}
	return hosts
}

// CSRF returns the session token gate for a route. The token is read from
// the X-CSRF-Token header, then from the csrf_token body field of a JSON,
// multipart or urlencoded body. Safe methods always pass.
func (g Gates) CSRF(policy endpoint.CSRFPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy == endpoint.CSRFNone {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !endpoint.Mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if policy == endpoint.CSRFIfIssued && !g.Sessions.HasCSRFToken(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(CSRFHeader)
			if token == "" {
				var err error
				if token, err = bodyToken(r); err != nil {
					g.Responder.Error(w, r, err)
					return
				}
			}

			if !g.Sessions.ValidCSRF(r.Context(), token) {
				slog.WarnContext(r.Context(), "CSRF validation failed",
					"method", r.Method,
					"path", r.URL.Path,
					"ip", util.ClientIP(r),
					"token_present", token != "",
				)
				g.Responder.Error(w, r, ErrInvalidCSRF)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bodyToken extracts the csrf_token field without consuming the body for
// the handler. Only size errors are reported; a malformed body simply has
// no token.
func bodyToken(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			if endpoint.IsTooLarge(err) {
				return "", apperror.TooLarge("Request body too large")
			}
			return "", nil
		}
		return r.PostFormValue(CSRFField), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			if endpoint.IsTooLarge(err) {
				return "", apperror.TooLarge("Request body too large")
			}
			return "", nil
		}
		return r.PostFormValue(CSRFField), nil
	default:
		raw, err := endpoint.ReadBody(r, endpoint.MaxBodyBytes)
		if err != nil {
			return "", err
		}
		var body struct {
			Token string `json:"csrf_token"`
		}
		if json.Unmarshal(raw, &body) != nil {
			return "", nil
		}
		return body.Token, nil
	}
}

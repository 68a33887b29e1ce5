// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package endpoint defines the route table entries served under /api and
// the request context handed to every handler.
package endpoint

import (
	"context"
	"net/http"

	"github.com/olegiv/province-cms/internal/auth"
	"github.com/olegiv/province-cms/internal/session"
)

// Access is the minimum caller level a route accepts.
type Access int

// Access levels.
const (
	Public Access = iota
	Authenticated
	Editor
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Editor:
		return auth.RoleEditor
	case Admin:
		return auth.RoleAdmin
	default:
		return "unknown"
	}
}

// Role returns the role an access level requires, or "" when any
// authenticated user (or anyone) is accepted.
func (a Access) Role() string {
	switch a {
	case Editor:
		return auth.RoleEditor
	case Admin:
		return auth.RoleAdmin
	default:
		return ""
	}
}

// AccessForRole maps a resource write role to its access level.
func AccessForRole(role string) Access {
	if role == auth.RoleAdmin {
		return Admin
	}
	return Editor
}

// CSRFPolicy selects how the CSRF gate treats a route.
type CSRFPolicy int

// CSRF policies.
const (
	// CSRFNone skips token validation.
	CSRFNone CSRFPolicy = iota
	// CSRFRequired rejects mutating requests without a valid token.
	CSRFRequired
	// CSRFIfIssued validates only when the session already holds a token.
	CSRFIfIssued
)

// HandlerFunc serves one route. A returned error is rendered through the
// error envelope.
type HandlerFunc func(c *Context) error

// Route is one entry of the API route table.
type Route struct {
	Method  string
	Pattern string
	Access  Access
	CSRF    CSRFPolicy
	Handler HandlerFunc

	// MaxBody caps the request body. Zero means MaxBodyBytes.
	MaxBody int64

	// Unthrottled routes bypass the per-IP API limiter.
	Unthrottled bool

	// NoTimeout routes run without the request timeout.
	NoTimeout bool
}

// BodyLimit returns the effective body cap of the route.
func (rt Route) BodyLimit() int64 {
	if rt.MaxBody > 0 {
		return rt.MaxBody
	}
	return MaxBodyBytes
}

// Mutating reports whether method changes server state.
func Mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

type ctxKey int

const identityKey ctxKey = iota

// WithIdentity stores the authenticated identity in ctx.
func WithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(identityKey).(session.Identity)
	return id, ok
}

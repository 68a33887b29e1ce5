// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/middleware"
	"github.com/olegiv/province-cms/internal/session"
	"github.com/olegiv/province-cms/internal/util"
)

// loginRequest is the body of POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a fresh session.
// The account lock is checked before the rate limiter so a locked account
// always reports 423.
func (h *Handler) Login(c *endpoint.Context) error {
	var req loginRequest
	if err := c.Decode(&req); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return apperror.Validation("Username and password are required")
	}

	ctx := c.Ctx()
	ip := util.ClientIP(c.R)

	if err := h.Auth.CheckLock(ctx, req.Username); err != nil {
		return err
	}

	key := h.Limiter.Fingerprint(ip, c.R.UserAgent())
	if ok, retryAfter := h.Limiter.Allow(ctx, key); !ok {
		slog.WarnContext(ctx, "login rate limit exceeded", "ip", ip, "retry_after", retryAfter)
		return apperror.RateLimited("Too many login attempts. Please try again later.", retryAfter)
	}

	user, err := h.Auth.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			slog.WarnContext(ctx, "failed login attempt",
				"username", req.Username,
				"ip", ip,
				"status", appErr.Code,
			)
		}
		return err
	}

	id := session.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	token, err := h.Sessions.Issue(ctx, id)
	if err != nil {
		return err
	}
	h.Limiter.Reset(ctx, key)

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID, "username", user.Username, "ip", ip)
	h.Audit.Record(ctx, c.R, audit.Actor{ID: user.ID, Username: user.Username}, audit.Event{
		Action:     audit.ActionLogin,
		Resource:   "users",
		ResourceID: user.ID,
	})

	c.W.Header().Set(middleware.CSRFHeader, token)
	return c.OK(map[string]any{
		"user":       h.Users.View(user),
		"csrf_token": token,
	})
}

// Logout destroys the session. It succeeds for anonymous callers too.
func (h *Handler) Logout(c *endpoint.Context) error {
	ctx := c.Ctx()
	if id, ok := c.Identity(); ok {
		h.Audit.Record(ctx, c.R, actorOf(id), audit.Event{
			Action:     audit.ActionLogout,
			Resource:   "users",
			ResourceID: id.UserID,
		})
		slog.InfoContext(ctx, "user logged out", "user_id", id.UserID, "username", id.Username)
	}
	if err := h.Sessions.Destroy(ctx); err != nil {
		return err
	}
	return c.OK(nil)
}

// Check reports the session state. It always answers 200 and always hands
// out a CSRF token, creating one for anonymous sessions.
func (h *Handler) Check(c *endpoint.Context) error {
	ctx := c.Ctx()
	data := map[string]any{"authenticated": false}

	id, err := h.Sessions.Authenticate(ctx)
	switch {
	case err == nil:
		data["authenticated"] = true
		data["user"] = id
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrExpired):
	default:
		return err
	}

	token, _, err := h.Sessions.CSRFToken(ctx)
	if err != nil {
		return err
	}
	data["csrf_token"] = token
	c.W.Header().Set(middleware.CSRFHeader, token)
	return c.OK(data)
}

func actorOf(id session.Identity) audit.Actor {
	return audit.Actor{ID: id.UserID, Username: id.Username}
}

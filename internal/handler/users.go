// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/service"
)

// ListUsers returns every account.
func (h *Handler) ListUsers(c *endpoint.Context) error {
	users, err := h.Users.List(c.Ctx())
	if err != nil {
		return err
	}
	return c.OK(map[string]any{"users": users})
}

// CreateUser adds an account.
func (h *Handler) CreateUser(c *endpoint.Context) error {
	var in service.CreateUserInput
	if err := c.Decode(&in); err != nil {
		return err
	}
	user, err := h.Users.Create(c.Ctx(), in)
	if err != nil {
		return err
	}

	who, _ := c.Identity()
	slog.InfoContext(c.Ctx(), "user created", "user_id", user.ID, "username", user.Username, "role", user.Role, "created_by", who.UserID)
	h.Audit.Record(c.Ctx(), c.R, actorOf(who), audit.Event{
		Action:     audit.ActionCreate,
		Resource:   "users",
		ResourceID: user.ID,
		Details:    map[string]any{"username": user.Username, "role": user.Role},
	})
	return c.JSON(http.StatusCreated, map[string]any{"user": user})
}

// UpdateUser changes the email, role or password of an account.
func (h *Handler) UpdateUser(c *endpoint.Context) error {
	id, err := c.ID()
	if err != nil {
		return err
	}
	var in service.UpdateUserInput
	if err := c.Decode(&in); err != nil {
		return err
	}
	in.ID = id

	who, _ := c.Identity()
	user, err := h.Users.Update(c.Ctx(), who.UserID, in)
	if err != nil {
		return err
	}

	details := map[string]any{}
	if in.Email != nil {
		details["email"] = user.Email
	}
	if in.Role != nil {
		details["role"] = user.Role
	}
	if in.Password != nil {
		details["password_changed"] = true
	}
	h.Audit.Record(c.Ctx(), c.R, actorOf(who), audit.Event{
		Action:     audit.ActionUpdate,
		Resource:   "users",
		ResourceID: user.ID,
		Details:    details,
	})
	return c.OK(map[string]any{"user": user})
}

// DeleteUser removes an account.
func (h *Handler) DeleteUser(c *endpoint.Context) error {
	id, err := c.ID()
	if err != nil {
		return err
	}
	who, _ := c.Identity()
	if err := h.Users.Delete(c.Ctx(), who.UserID, id); err != nil {
		return err
	}

	slog.InfoContext(c.Ctx(), "user deleted", "user_id", id, "deleted_by", who.UserID)
	h.Audit.Record(c.Ctx(), c.R, actorOf(who), audit.Event{
		Action:     audit.ActionDelete,
		Resource:   "users",
		ResourceID: id,
	})
	return c.OK(map[string]any{"id": id})
}

// UnlockUser clears an account lockout.
func (h *Handler) UnlockUser(c *endpoint.Context) error {
	id, err := c.ID()
	if err != nil {
		return err
	}
	if err := h.Users.Unlock(c.Ctx(), id); err != nil {
		return err
	}

	who, _ := c.Identity()
	h.Audit.Record(c.Ctx(), c.R, actorOf(who), audit.Event{
		Action:     audit.ActionUnlock,
		Resource:   "users",
		ResourceID: id,
	})
	return c.OK(map[string]any{"id": id})
}

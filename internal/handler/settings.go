// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/endpoint"
)

// ListSettings returns every site setting with defaults filled in.
func (h *Handler) ListSettings(c *endpoint.Context) error {
	settings, err := h.Settings.List(c.Ctx())
	if err != nil {
		return err
	}
	return c.OK(map[string]any{"settings": settings})
}

// UpdateSettings changes the settings named in {"settings": {...}}.
func (h *Handler) UpdateSettings(c *endpoint.Context) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	input, ok := body["settings"].(map[string]any)
	if !ok {
		return apperror.Validation("settings must be an object")
	}

	settings, err := h.Settings.Update(c.Ctx(), input)
	if err != nil {
		return err
	}

	who, _ := c.Identity()
	h.Audit.Record(c.Ctx(), c.R, actorOf(who), audit.Event{
		Action:   audit.ActionUpdate,
		Resource: "settings",
		Details:  map[string]any{"fields": changedFields(input)},
	})
	return c.OK(map[string]any{"settings": settings})
}

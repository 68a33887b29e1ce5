// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/service"
	"github.com/olegiv/province-cms/internal/store"
)

// ListAudit returns audit entries newest first, optionally filtered by
// ?resource= and ?actor=<user id>.
func (h *Handler) ListAudit(c *endpoint.Context) error {
	page, err := c.QueryInt("page", 1)
	if err != nil {
		return err
	}
	perPage, err := c.QueryInt("per_page", service.DefaultPerPage)
	if err != nil {
		return err
	}
	perPage = min(perPage, service.MaxPerPage)

	actor, err := c.QueryInt("actor", 0)
	if err != nil {
		return err
	}
	filter := store.AuditFilter{Resource: c.Query("resource"), ActorID: actor}

	entries, total, err := h.Audit.List(c.Ctx(), filter, perPage, (page-1)*perPage)
	if err != nil {
		return err
	}
	return c.OK(map[string]any{
		"items":    entries,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"slices"

	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/resource"
	"github.com/olegiv/province-cms/internal/service"
)

// listParams are query keys consumed by the list endpoint itself; every
// other key is treated as a field filter.
var listParams = map[string]bool{"page": true, "per_page": true}

// resourceRoutes generates the CRUD routes of every registered resource.
func (h *Handler) resourceRoutes() []endpoint.Route {
	var routes []endpoint.Route
	for _, schema := range resource.Registry {
		base := "/api/" + schema.Name
		write := endpoint.AccessForRole(schema.WriteRole)
		rh := resourceHandler{Handler: h, schema: schema}

		routes = append(routes,
			endpoint.Route{Method: http.MethodGet, Pattern: base + "/list", Access: endpoint.Public, Handler: rh.list},
			endpoint.Route{Method: http.MethodGet, Pattern: base + "/get", Access: endpoint.Public, Handler: rh.get},
			endpoint.Route{Method: http.MethodPost, Pattern: base + "/create", Access: write, CSRF: endpoint.CSRFRequired, Handler: rh.create},
			endpoint.Route{Method: http.MethodPut, Pattern: base + "/update", Access: write, CSRF: endpoint.CSRFRequired, Handler: rh.update(resource.ModeReplace)},
			endpoint.Route{Method: http.MethodPatch, Pattern: base + "/update", Access: write, CSRF: endpoint.CSRFRequired, Handler: rh.update(resource.ModePatch)},
			endpoint.Route{Method: http.MethodDelete, Pattern: base + "/delete", Access: write, CSRF: endpoint.CSRFRequired, Handler: rh.delete},
		)
		if schema.SoftDelete {
			routes = append(routes, endpoint.Route{
				Method:  http.MethodPost,
				Pattern: base + "/restore",
				Access:  write,
				CSRF:    endpoint.CSRFRequired,
				Handler: rh.restore,
			})
		}
	}
	return routes
}

// resourceHandler serves one resource.
type resourceHandler struct {
	*Handler
	schema *resource.Schema
}

// list returns a page of records. Signed-in staff also see unpublished
// and inactive rows.
func (rh resourceHandler) list(c *endpoint.Context) error {
	page, err := c.QueryInt("page", 1)
	if err != nil {
		return err
	}
	perPage, err := c.QueryInt("per_page", service.DefaultPerPage)
	if err != nil {
		return err
	}

	filters := make(map[string]any)
	for key := range c.R.URL.Query() {
		if listParams[key] {
			continue
		}
		v, err := rh.schema.Filter(key, c.Query(key))
		if err != nil {
			return err
		}
		filters[key] = v
	}

	_, staff := c.Identity()
	result, err := rh.Resources.List(c.Ctx(), rh.schema, service.ListParams{
		Page:          page,
		PerPage:       perPage,
		IncludeHidden: staff,
		Filters:       filters,
	})
	if err != nil {
		return err
	}
	return c.OK(map[string]any{
		"items":    result.Items,
		"total":    result.Total,
		"page":     result.Page,
		"per_page": result.PerPage,
	})
}

// get returns one record by ?id= or ?slug=.
func (rh resourceHandler) get(c *endpoint.Context) error {
	_, staff := c.Identity()

	var (
		record map[string]any
		err    error
	)
	if slug := c.Query("slug"); slug != "" && c.Query("id") == "" {
		record, err = rh.Resources.GetBySlug(c.Ctx(), rh.schema, slug, staff)
	} else {
		var id int64
		if id, err = c.ID(); err != nil {
			return err
		}
		record, err = rh.Resources.Get(c.Ctx(), rh.schema, id, staff)
	}
	if err != nil {
		return err
	}
	return c.OK(map[string]any{"record": record})
}

func (rh resourceHandler) create(c *endpoint.Context) error {
	input, err := c.Body()
	if err != nil {
		return err
	}
	id, record, err := rh.Resources.Create(c.Ctx(), rh.schema, input)
	if err != nil {
		return err
	}
	rh.record(c, audit.ActionCreate, id, map[string]any{"label": label(record)})
	return c.JSON(http.StatusCreated, map[string]any{"id": id, "record": record})
}

func (rh resourceHandler) update(mode resource.Mode) endpoint.HandlerFunc {
	return func(c *endpoint.Context) error {
		id, err := c.ID()
		if err != nil {
			return err
		}
		input, err := c.Body()
		if err != nil {
			return err
		}
		record, err := rh.Resources.Update(c.Ctx(), rh.schema, id, input, mode)
		if err != nil {
			return err
		}
		rh.record(c, audit.ActionUpdate, id, map[string]any{"fields": changedFields(input)})
		return c.OK(map[string]any{"id": id, "record": record})
	}
}

func (rh resourceHandler) delete(c *endpoint.Context) error {
	id, err := c.ID()
	if err != nil {
		return err
	}
	if err := rh.Resources.Delete(c.Ctx(), rh.schema, id); err != nil {
		return err
	}
	rh.record(c, audit.ActionDelete, id, map[string]any{"soft": rh.schema.SoftDelete})
	return c.OK(map[string]any{"id": id})
}

func (rh resourceHandler) restore(c *endpoint.Context) error {
	id, err := c.ID()
	if err != nil {
		return err
	}
	record, err := rh.Resources.Restore(c.Ctx(), rh.schema, id)
	if err != nil {
		return err
	}
	rh.record(c, audit.ActionRestore, id, nil)
	return c.OK(map[string]any{"id": id, "record": record})
}

func (rh resourceHandler) record(c *endpoint.Context, action string, id int64, details map[string]any) {
	who, _ := c.Identity()
	rh.Audit.Record(c.Ctx(), c.R, actorOf(who), audit.Event{
		Action:     action,
		Resource:   rh.schema.Name,
		ResourceID: id,
		Details:    details,
	})
}

// label picks a human-readable name for the audit trail.
func label(record map[string]any) any {
	if v, ok := record["title"]; ok {
		return v
	}
	return record["name"]
}

func changedFields(input map[string]any) []string {
	fields := make([]string, 0, len(input))
	for k := range input {
		if k != "id" && k != "csrf_token" {
			fields = append(fields, k)
		}
	}
	slices.Sort(fields)
	return fields
}

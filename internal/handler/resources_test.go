// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/province-cms/internal/auth"
	"github.com/olegiv/province-cms/internal/resource"
)

func banner(title string) map[string]any {
	return map[string]any{
		"title":     title,
		"image_url": "/uploads/images/2025/03/banner.jpg",
		"link_url":  "https://example.org/about",
	}
}

func TestCreate_WithoutCSRFWritesNothing(t *testing.T) {
	e := newTestEnv(t)
	c, _ := e.loginAs(auth.RoleAdmin)

	res := c.json(http.MethodPost, "/api/banners/create", banner("Welcome"), false)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, map[string]any{"error": "Invalid CSRF token"}, res.body)
	assert.Equal(t, 0, e.count("banners"))

	c.csrf = "not-the-token"
	res = c.send(http.MethodPost, "/api/banners/create", banner("Welcome"))
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, 0, e.count("banners"))
}

func TestCreate_CSRFTokenInBody(t *testing.T) {
	e := newTestEnv(t)
	c, _ := e.loginAs(auth.RoleAdmin)

	body := banner("Welcome")
	body["csrf_token"] = c.csrf
	res := c.json(http.MethodPost, "/api/banners/create", body, false)
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	assert.Equal(t, 1, e.count("banners"))
}

func TestAccessGates(t *testing.T) {
	e := newTestEnv(t)
	editor, _ := e.loginAs(auth.RoleEditor)
	anon := e.newClient()

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/banners/create", banner("Welcome")},
		{http.MethodPost, "/api/council/create", map[string]any{"name": "Sr. Ana", "position": "Councillor"}},
		{http.MethodGet, "/api/users/list", nil},
		{http.MethodGet, "/api/audit/list", nil},
		{http.MethodPatch, "/api/settings/update", map[string]any{"settings": map[string]any{"site_name": "X"}}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			res := editor.send(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusForbidden, res.code)
			assert.Equal(t, "Insufficient permissions", res.errorMessage())

			res = anon.send(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnauthorized, res.code)
			assert.Equal(t, "Authentication required", res.errorMessage())
		})
	}
	assert.Equal(t, 0, e.count("banners"))
	assert.Equal(t, 0, e.count("council"))
}

func TestCreateListRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	editor, _ := e.loginAs(auth.RoleEditor)

	res := editor.send(http.MethodPost, "/api/news/create", map[string]any{
		"title":        "  Feast of <St. Joseph> & friends  ",
		"summary":      "Line one\nLine two",
		"content":      `<p onclick="x()">Hello <a href="https://example.org">there</a></p><script>alert(1)</script>`,
		"published_at": "2025-03-19",
		"is_published": true,
	})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	assert.Equal(t, true, res.body["success"])
	id := number(res.body["id"])
	require.Positive(t, id)

	list := e.newClient().get("/api/news/list")
	require.Equal(t, http.StatusOK, list.code)
	assert.EqualValues(t, 1, list.body["total"])
	require.Len(t, list.items(), 1)

	item, _ := list.items()[0].(map[string]any)
	assert.EqualValues(t, id, item["id"])
	assert.Equal(t, "Feast of &lt;St. Joseph&gt; &amp; friends", item["title"])
	assert.Equal(t, "Line one\nLine two", item["summary"])
	assert.NotContains(t, item["content"], "<script")
	assert.NotContains(t, item["content"], "onclick")
	assert.Contains(t, item["content"], `href="https://example.org"`)
	assert.Equal(t, "2025-03-19", item["published_at"])
	assert.Equal(t, true, item["is_published"])
	assert.NotEmpty(t, item["slug"])
}

func TestList_HiddenRowsAndPagination(t *testing.T) {
	e := newTestEnv(t)
	editor, _ := e.loginAs(auth.RoleEditor)

	for i := 1; i <= 3; i++ {
		res := editor.send(http.MethodPost, "/api/events/create", map[string]any{
			"title":        fmt.Sprintf("Retreat %d", i),
			"event_date":   fmt.Sprintf("2025-04-%02d", i),
			"is_published": i != 2,
		})
		require.Equal(t, http.StatusCreated, res.code, res.raw)
	}

	anon := e.newClient()
	res := anon.get("/api/events/list")
	assert.EqualValues(t, 2, res.body["total"], "drafts are hidden from visitors")

	res = editor.get("/api/events/list")
	assert.EqualValues(t, 3, res.body["total"], "staff see drafts")

	res = editor.get("/api/events/list?page=2&per_page=2")
	assert.Len(t, res.items(), 1)
	assert.EqualValues(t, 2, res.body["page"])
	assert.EqualValues(t, 2, res.body["per_page"])

	res = anon.get("/api/events/list?per_page=5000")
	assert.EqualValues(t, 100, res.body["per_page"])

	res = anon.get("/api/events/list?page=0")
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = anon.get("/api/events/list?title=x")
	assert.Equal(t, http.StatusBadRequest, res.code, "only declared filters are accepted")
}

func TestPatch_EmptyFieldSet(t *testing.T) {
	e := newTestEnv(t)
	admin, _ := e.loginAs(auth.RoleAdmin)

	res := admin.send(http.MethodPost, "/api/banners/create", banner("Welcome"))
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	id := number(res.body["id"])

	for _, body := range []map[string]any{{"id": id}, {"id": id, "unknown": "x"}} {
		res = admin.send(http.MethodPatch, "/api/banners/update", body)
		assert.Equal(t, http.StatusBadRequest, res.code, res.raw)
	}
	res = admin.send(http.MethodPatch, "/api/banners/update", map[string]any{"id": id})
	assert.Equal(t, "No fields to update", res.errorMessage())

	got := admin.get(fmt.Sprintf("/api/banners/get?id=%d", id))
	require.Equal(t, http.StatusOK, got.code)
	assert.Equal(t, "Welcome", got.object("record")["title"])
}

func TestUpdate_PatchAndReplace(t *testing.T) {
	e := newTestEnv(t)
	admin, _ := e.loginAs(auth.RoleAdmin)

	res := admin.send(http.MethodPost, "/api/banners/create", banner("Welcome"))
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	id := number(res.body["id"])

	res = admin.send(http.MethodPatch, fmt.Sprintf("/api/banners/update?id=%d", id), map[string]any{"title": "Hello"})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	record := res.object("record")
	assert.Equal(t, "Hello", record["title"])
	assert.Equal(t, "https://example.org/about", record["link_url"], "untouched fields are kept")

	res = admin.send(http.MethodPut, "/api/banners/update", map[string]any{"id": id, "title": "Only title"})
	assert.Equal(t, http.StatusBadRequest, res.code, "PUT requires every required field")
	assert.Contains(t, res.body["fields"], "image_url")

	res = admin.send(http.MethodPut, "/api/banners/update", map[string]any{
		"id":        id,
		"title":     "Replaced",
		"image_url": "/uploads/images/2025/03/other.jpg",
	})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, "Replaced", res.object("record")["title"])
	assert.Empty(t, res.object("record")["link_url"], "PUT resets absent optional fields")

	res = admin.send(http.MethodPatch, "/api/banners/update", map[string]any{"id": 9999, "title": "x"})
	assert.Equal(t, http.StatusNotFound, res.code)

	res = admin.send(http.MethodPatch, "/api/banners/update", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, res.code, "id is required")
}

func TestCreate_Validation(t *testing.T) {
	e := newTestEnv(t)
	admin, _ := e.loginAs(auth.RoleAdmin)

	res := admin.send(http.MethodPost, "/api/banners/create", map[string]any{
		"title":     "",
		"image_url": "javascript:alert(1)",
	})
	require.Equal(t, http.StatusBadRequest, res.code)
	fields := res.object("fields")
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "image_url")
	assert.Equal(t, 0, e.count("banners"))

	res = admin.request(http.MethodPost, "/api/banners/create", nil, "application/json", true)
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestCircular_DuplicateMonthYear(t *testing.T) {
	e := newTestEnv(t)
	editor, _ := e.loginAs(auth.RoleEditor)

	circular := map[string]any{
		"title":    "March circular",
		"month":    3,
		"year":     2025,
		"file_url": "/uploads/files/march.pdf",
		"summary":  "**Retreat** dates",
	}
	res := editor.send(http.MethodPost, "/api/circulars/create", circular)
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	assert.Contains(t, res.object("record")["summary"], "<strong>Retreat</strong>")

	circular["title"] = "Another March circular"
	res = editor.send(http.MethodPost, "/api/circulars/create", circular)
	assert.Equal(t, http.StatusConflict, res.code)
	assert.Equal(t, "A circular for this month and year already exists", res.errorMessage())
	assert.Equal(t, 1, e.count("circulars"))

	res = editor.get("/api/circulars/list?year=2025")
	assert.EqualValues(t, 1, res.body["total"])
	res = editor.get("/api/circulars/list?year=2024")
	assert.EqualValues(t, 0, res.body["total"])
}

func TestGet_ByIDAndSlug(t *testing.T) {
	e := newTestEnv(t)
	editor, _ := e.loginAs(auth.RoleEditor)

	res := editor.send(http.MethodPost, "/api/pages/create", map[string]any{
		"title":        "About us",
		"slug":         "about",
		"content":      "<p>History</p>",
		"is_published": true,
	})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	id := number(res.body["id"])

	anon := e.newClient()
	res = anon.get("/api/pages/get?slug=about")
	require.Equal(t, http.StatusOK, res.code)
	assert.EqualValues(t, id, res.object("record")["id"])

	res = anon.get(fmt.Sprintf("/api/pages/get?id=%d", id))
	assert.Equal(t, "About us", res.object("record")["title"])

	assert.Equal(t, http.StatusNotFound, anon.get("/api/pages/get?slug=missing").code)
	assert.Equal(t, http.StatusNotFound, anon.get("/api/pages/get?id=999").code)
	assert.Equal(t, http.StatusBadRequest, anon.get("/api/pages/get").code)
	assert.Equal(t, http.StatusBadRequest, anon.get("/api/banners/get?slug=x").code, "banners have no slug")
}

func TestDeleteAndRestore(t *testing.T) {
	e := newTestEnv(t)
	editor, _ := e.loginAs(auth.RoleEditor)

	res := editor.send(http.MethodPost, "/api/news/create", map[string]any{"title": "Old news", "is_published": true})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	id := number(res.body["id"])

	res = editor.send(http.MethodDelete, fmt.Sprintf("/api/news/delete?id=%d", id), nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, 1, e.count("news"), "news is soft-deleted")
	assert.Equal(t, http.StatusNotFound, editor.get(fmt.Sprintf("/api/news/get?id=%d", id)).code)
	assert.EqualValues(t, 0, editor.get("/api/news/list").body["total"])

	res = editor.send(http.MethodPost, "/api/news/restore", map[string]any{"id": id})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, "Old news", res.object("record")["title"])
	assert.Equal(t, http.StatusOK, editor.get(fmt.Sprintf("/api/news/get?id=%d", id)).code)

	res = editor.send(http.MethodPost, "/api/gallery/create", map[string]any{
		"title":     "Chapel",
		"image_url": "/uploads/images/2025/03/chapel.jpg",
	})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	gid := number(res.body["id"])
	res = editor.send(http.MethodDelete, fmt.Sprintf("/api/gallery/delete?id=%d", gid), nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, 0, e.count("gallery"), "gallery rows are removed")

	assert.Equal(t, http.StatusNotFound, editor.send(http.MethodPost, "/api/gallery/restore", map[string]any{"id": gid}).code,
		"restore exists only for soft-delete resources")
	assert.Equal(t, http.StatusNotFound, editor.send(http.MethodDelete, "/api/news/delete?id=999", nil).code)
}

func TestMutationsAreAudited(t *testing.T) {
	e := newTestEnv(t)
	admin, u := e.loginAs(auth.RoleAdmin)

	res := admin.send(http.MethodPost, "/api/staff/create", map[string]any{"name": "Sr. Lucia", "position": "Bursar"})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	id := number(res.body["id"])
	require.Equal(t, http.StatusOK, admin.send(http.MethodPatch, "/api/staff/update", map[string]any{"id": id, "phone": "+1 555 0100"}).code)
	require.Equal(t, http.StatusOK, admin.send(http.MethodDelete, fmt.Sprintf("/api/staff/delete?id=%d", id), nil).code)

	res = admin.get("/api/audit/list?resource=staff")
	require.Equal(t, http.StatusOK, res.code)
	require.Len(t, res.items(), 3)

	newest, _ := res.items()[0].(map[string]any)
	assert.Equal(t, "delete", newest["action"])
	assert.EqualValues(t, id, newest["resource_id"])
	assert.EqualValues(t, u.ID, newest["actor_id"])
	assert.Equal(t, u.Username, newest["actor_username"])

	update, _ := res.items()[1].(map[string]any)
	assert.Equal(t, map[string]any{"fields": []any{"phone"}}, update["details"])

	res = admin.get(fmt.Sprintf("/api/audit/list?actor=%d&resource=users", u.ID))
	assert.EqualValues(t, 1, res.body["total"], "the login")

	assert.Equal(t, http.StatusBadRequest, admin.get("/api/audit/list?actor=abc").code)
}

func TestRouteTable(t *testing.T) {
	e := newTestEnv(t)
	anon := e.newClient()
	res := anon.get("/api/banners/create")
	assert.Equal(t, http.StatusMethodNotAllowed, res.code)
	assert.Equal(t, "Method not allowed", res.errorMessage())

	res = anon.get("/api/nothing/here")
	assert.Equal(t, http.StatusNotFound, res.code)
	assert.Equal(t, "Not found", res.errorMessage())

	for _, schema := range resource.Registry {
		res := anon.get("/api/" + schema.Name + "/list")
		assert.Equal(t, http.StatusOK, res.code, schema.Name)
	}
}

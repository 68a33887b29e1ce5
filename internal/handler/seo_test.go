// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/province-cms/internal/auth"
)

func TestSitemap(t *testing.T) {
	e := newTestEnv(t, func(cfg *RouterConfig) { cfg.SiteURL = "https://province.example.org/" })
	editor, _ := e.loginAs(auth.RoleEditor)

	res := editor.send(http.MethodPost, "/api/news/create", map[string]any{"title": "Feast Day", "is_published": true})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	res = editor.send(http.MethodPost, "/api/news/create", map[string]any{"title": "Draft notes", "is_published": false})
	require.Equal(t, http.StatusCreated, res.code, res.raw)

	res = e.newClient().get("/sitemap.xml")
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "application/xml; charset=utf-8", res.header.Get("Content-Type"))
	assert.Equal(t, seoMaxAge, res.header.Get("Cache-Control"))
	assert.Contains(t, res.raw, "<loc>https://province.example.org/</loc>")
	assert.Contains(t, res.raw, "<loc>https://province.example.org/news</loc>")
	assert.Contains(t, res.raw, "<loc>https://province.example.org/news/feast-day</loc>")
	assert.NotContains(t, res.raw, "draft-notes", "hidden records stay out")
	assert.NotContains(t, res.raw, "/banners<")
}

func TestRobots(t *testing.T) {
	e := newTestEnv(t)
	res := e.newClient().get("/robots.txt")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.raw, "Disallow: /api/\n")
	assert.Contains(t, res.raw, "Sitemap: http://127.0.0.1")

	staging := newTestEnv(t, func(cfg *RouterConfig) { cfg.DisallowCrawlers = true })
	res = staging.newClient().get("/robots.txt")
	assert.Equal(t, "User-agent: *\nDisallow: /\n", res.raw)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(parseTimestamp("2025-03-01T12:00:00Z")))
	assert.True(t, want.Equal(parseTimestamp("2025-03-01 12:00:00")))
	assert.True(t, parseTimestamp(nil).IsZero())
	assert.True(t, parseTimestamp("yesterday").IsZero())
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSPAFallback(t *testing.T) {
	spa := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(spa, "index.html"), []byte("<!doctype html><div id=app></div>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(spa, "assets"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(spa, "assets", "app.js"), []byte("console.log(1)"), 0o600))

	e := newTestEnv(t, func(cfg *RouterConfig) { cfg.SPADir = spa })
	c := e.newClient()

	res := c.get("/")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.raw, "id=app")

	res = c.get("/news/feast-of-st-joseph")
	assert.Equal(t, http.StatusOK, res.code, "client-side routes get index.html")
	assert.Contains(t, res.raw, "id=app")

	res = c.get("/assets/app.js")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "console.log(1)", res.raw)

	res = c.get("/api/unknown")
	assert.Equal(t, http.StatusNotFound, res.code)
	assert.Equal(t, "Not found", res.errorMessage())

	res = c.get("/api/auth/check")
	assert.Equal(t, http.StatusOK, res.code, "API routes win over the SPA")
}

func TestIsAPIPath(t *testing.T) {
	tests := map[string]bool{
		"/api":           true,
		"/api/news/list": true,
		"/apiary":        false,
		"/":              false,
		"/about":         false,
	}
	for p, want := range tests {
		assert.Equal(t, want, isAPIPath(p), p)
	}
}

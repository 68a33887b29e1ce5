// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/middleware"
)

func TestRouter_APILimiterSparesSessionCheck(t *testing.T) {
	e := newTestEnv(t, func(cfg *RouterConfig) {
		cfg.APILimiter = middleware.NewGlobalRateLimiter(1, 3, endpoint.Responder{Development: true})
	})
	c := e.newClient()

	codes := map[int]int{}
	for range 50 {
		codes[c.get("/api/auth/check").code]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 50}, codes)

	limited := 0
	for range 10 {
		if c.get("/api/settings/list").code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited, "other routes stay throttled")
}

func TestRouter_TimeoutExemptions(t *testing.T) {
	e := newTestEnv(t, func(cfg *RouterConfig) { cfg.RequestTimeout = time.Nanosecond })
	c := e.newClient()

	res := c.get("/api/settings/list")
	assert.Equal(t, http.StatusServiceUnavailable, res.code)
	assert.Equal(t, "Request timeout", res.errorMessage())

	res = c.upload("photo.png", pngBytes(t, 10, 10), false)
	assert.Equal(t, http.StatusUnauthorized, res.code, "the upload route runs without the timeout")

	dir := filepath.Join(e.uploads, "images")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngBytes(t, 2, 2), 0o600))
	assert.Equal(t, http.StatusOK, c.get("/uploads/images/a.png").code)
}

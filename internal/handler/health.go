// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/province-cms/internal/endpoint"
)

// healthTimeout bounds the database ping.
const healthTimeout = 2 * time.Second

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Health handles GET /health. Anonymous callers only learn the overall
// status; signed-in staff also get the version, uptime and check details.
func (h *Handler) Health(c *endpoint.Context) error {
	checks := map[string]Check{"database": h.checkDatabase(c.Ctx())}
	if h.Cache != nil {
		checks["cache"] = h.checkCache(c.Ctx())
	}

	status, code := "healthy", http.StatusOK
	for _, chk := range checks {
		if chk.Status != "healthy" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	data := map[string]any{"status": status}
	if _, staff := c.Identity(); staff {
		data["version"] = h.Version.Label()
		data["commit"] = h.Version.Commit()
		data["uptime"] = h.Now().Sub(h.started).Round(time.Second).String()
		data["checks"] = checks
	}
	endpoint.WriteJSON(c.W, code, data)
	return nil
}

func (h *Handler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	if err := h.DB.PingContext(ctx); err != nil {
		slog.ErrorContext(ctx, "database health check failed", "error", err)
		return Check{Status: "unhealthy"}
	}

	var one int
	if err := h.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		slog.ErrorContext(ctx, "database query check failed", "error", err)
		return Check{Status: "unhealthy"}
	}
	return Check{Status: "healthy", Latency: time.Since(start).Round(time.Microsecond).String()}
}

func (h *Handler) checkCache(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	if err := h.Cache.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "cache health check failed", "error", err)
		return Check{Status: "unhealthy"}
	}
	return Check{Status: "healthy", Latency: time.Since(start).Round(time.Microsecond).String()}
}

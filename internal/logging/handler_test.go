// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsRequestAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", false)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = WithUser(ctx, "alice")
	logger.InfoContext(ctx, "login succeeded", "user_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "login succeeded", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "alice", rec["user"])
	assert.EqualValues(t, 7, rec["user_id"])
}

func TestContextHandler_NoContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", false).With("component", "scheduler")
	logger.Info("job finished")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "scheduler", rec["component"])
	assert.NotContains(t, rec, "request_id")
	assert.NotContains(t, rec, "user")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", true)
	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

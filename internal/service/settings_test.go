// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/province-cms/internal/cache"
	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/testutil"
)

func TestSettingsService(t *testing.T) {
	db := testutil.TestDB(t)
	c := cache.NewMemoryCache(cache.MemoryCacheOptions{})
	t.Cleanup(func() { _ = c.Close() })
	svc := NewSettingsService(db, store.DialectSQLite, c, testutil.NewClock().Now)
	ctx := context.Background()

	got, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Province", got["site_name"])
	assert.Equal(t, int64(10), got["news_per_page"])
	assert.Equal(t, true, got["show_events"])

	got, err = svc.Update(ctx, map[string]any{
		"site_name":     "Province of St. Joseph",
		"contact_email": "Office@Example.org",
		"news_per_page": "25",
		"show_events":   false,
	})
	require.NoError(t, err)
	assert.Equal(t, "Province of St. Joseph", got["site_name"])
	assert.Equal(t, "office@example.org", got["contact_email"])
	assert.Equal(t, int64(25), got["news_per_page"])
	assert.Equal(t, false, got["show_events"])

	// A fresh service reads through the shared cache and the database alike.
	again, err := NewSettingsService(db, store.DialectSQLite, cache.NewMemoryCache(cache.MemoryCacheOptions{}), nil).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestSettingsService_Rejects(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewSettingsService(db, store.DialectSQLite, cache.NewMemoryCache(cache.MemoryCacheOptions{}), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input map[string]any
	}{
		{"unknown key", map[string]any{"theme": "dark"}},
		{"empty site name", map[string]any{"site_name": ""}},
		{"bad url", map[string]any{"facebook_url": "javascript:alert(1)"}},
		{"out of range", map[string]any{"news_per_page": 0}},
		{"nothing", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tt.input)
			requireCode(t, err, http.StatusBadRequest)
		})
	}
}

func TestSettingDefaults(t *testing.T) {
	d := SettingDefaults()
	assert.Equal(t, "Province", d["site_name"])
	assert.Equal(t, "10", d["news_per_page"])
	assert.Equal(t, "true", d["show_events"])
	assert.Equal(t, "", d["footer_text"])
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/olegiv/province-cms/internal/cache"
	"github.com/olegiv/province-cms/internal/resource"
	"github.com/olegiv/province-cms/internal/store"
)

const settingsCacheKey = "settings"

// settingsSchema declares every site setting. Only these keys can be
// written; values are sanitized like resource fields.
var settingsSchema = &resource.Schema{
	Name: "settings",
	Fields: []resource.Field{
		{Name: "site_name", Kind: resource.KindString, Required: true, MaxLen: 120, Default: "Province"},
		{Name: "site_tagline", Kind: resource.KindString, MaxLen: 255},
		{Name: "contact_email", Kind: resource.KindEmail},
		{Name: "contact_phone", Kind: resource.KindString, MaxLen: 50},
		{Name: "contact_address", Kind: resource.KindText, MaxLen: 512},
		{Name: "facebook_url", Kind: resource.KindURL},
		{Name: "youtube_url", Kind: resource.KindURL},
		{Name: "instagram_url", Kind: resource.KindURL},
		{Name: "footer_text", Kind: resource.KindText, MaxLen: 2000},
		{Name: "news_per_page", Kind: resource.KindInt, Min: 1, Max: MaxPerPage, Default: int64(10)},
		{Name: "show_events", Kind: resource.KindBool, Default: true},
	},
}

// SettingDefaults returns the stored form of every setting's default.
func SettingDefaults() map[string]string {
	out := make(map[string]string, len(settingsSchema.Fields))
	for _, f := range settingsSchema.Fields {
		out[f.Name] = encodeSetting(f.Default)
	}
	return out
}

// SettingsService reads and writes site settings through a cache.
type SettingsService struct {
	db    *sql.DB
	q     *store.Queries
	cache *cache.TypedCache[map[string]string]
	now   func() time.Time
}

// NewSettingsService creates a settings service. A nil now uses time.Now.
func NewSettingsService(db *sql.DB, dialect store.Dialect, c cache.Cache, now func() time.Time) *SettingsService {
	if now == nil {
		now = time.Now
	}
	return &SettingsService{
		db:    db,
		q:     store.New(db, dialect),
		cache: cache.NewTypedCache[map[string]string](c, 0),
		now:   now,
	}
}

// List returns every declared setting with its typed value.
func (s *SettingsService) List(ctx context.Context) (map[string]any, error) {
	raw, err := s.cache.GetOrSet(ctx, settingsCacheKey, func() (map[string]string, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return present(raw), nil
}

// Update validates and stores the given settings, then returns the full
// set. Unknown keys are rejected.
func (s *SettingsService) Update(ctx context.Context, input map[string]any) (map[string]any, error) {
	values, err := settingsSchema.Sanitize(input, resource.ModePatch)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = store.InTx(ctx, s.db, s.q.Dialect(), func(q *store.Queries) error {
		for name, v := range values {
			if err := q.UpsertSetting(ctx, name, encodeSetting(v), now); err != nil {
				return fmt.Errorf("storing setting %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, settingsCacheKey); err != nil {
		slog.WarnContext(ctx, "failed to invalidate settings cache", "error", err)
	}
	return s.List(ctx)
}

func (s *SettingsService) load(ctx context.Context) (map[string]string, error) {
	rows, err := s.q.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := SettingDefaults()
	for _, row := range rows {
		if _, ok := settingsSchema.Field(row.Name); ok {
			out[row.Name] = row.Value
		}
	}
	return out, nil
}

func present(raw map[string]string) map[string]any {
	out := make(map[string]any, len(settingsSchema.Fields))
	for _, f := range settingsSchema.Fields {
		v := raw[f.Name]
		switch f.Kind {
		case resource.KindInt:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				out[f.Name] = f.Default
				continue
			}
			out[f.Name] = n
		case resource.KindBool:
			out[f.Name] = v == "true" || v == "1"
		default:
			out[f.Name] = v
		}
	}
	return out
}

func encodeSetting(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

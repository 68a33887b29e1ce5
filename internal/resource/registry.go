// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"github.com/olegiv/province-cms/internal/auth"
)

// Common length limits.
const (
	maxTitle   = 255
	maxShort   = 100
	maxText    = 5000
	maxRich    = 500_000
	maxPhone   = 50
	maxAddress = 512
)

func title() Field {
	return Field{Name: "title", Kind: KindString, Required: true, MaxLen: maxTitle}
}

func name() Field {
	return Field{Name: "name", Kind: KindString, Required: true, MaxLen: maxTitle}
}

func slug() Field {
	return Field{Name: "slug", Kind: KindSlug, Required: true, SlugFrom: "title"}
}

func imageURL(required bool) Field {
	return Field{Name: "image_url", Kind: KindURL, Required: required}
}

func sortOrder() Field {
	return Field{Name: "sort_order", Kind: KindInt, Min: -100000, Max: 100000}
}

func flag(name string, def bool) Field {
	return Field{Name: name, Kind: KindBool, Default: def}
}

// Registry holds every resource in the order routes are registered.
var Registry = []*Schema{
	{
		Name:  "banners",
		Table: "banners",
		Fields: []Field{
			title(),
			{Name: "subtitle", Kind: KindString, MaxLen: maxTitle},
			imageURL(true),
			{Name: "link_url", Kind: KindURL},
			sortOrder(),
			flag("is_active", true),
		},
		WriteRole:    auth.RoleAdmin,
		VisibleField: "is_active",
		OrderBy:      "sort_order ASC, id DESC",
	},
	{
		Name:  "news",
		Table: "news",
		Fields: []Field{
			title(),
			slug(),
			{Name: "summary", Kind: KindText, MaxLen: maxText},
			{Name: "content", Kind: KindHTML, MaxLen: maxRich},
			imageURL(false),
			{Name: "published_at", Kind: KindDate, Nullable: true},
			flag("is_published", false),
		},
		WriteRole:       auth.RoleEditor,
		SoftDelete:      true,
		VisibleField:    "is_published",
		OrderBy:         "published_at DESC, id DESC",
		ConflictMessage: "A news article with this slug already exists",
	},
	{
		Name:  "pages",
		Table: "pages",
		Fields: []Field{
			title(),
			slug(),
			{Name: "content", Kind: KindHTML, MaxLen: maxRich},
			flag("is_published", false),
			{Name: "show_in_menu", Kind: KindBool, Default: false, Filterable: true},
			sortOrder(),
		},
		WriteRole:       auth.RoleEditor,
		SoftDelete:      true,
		VisibleField:    "is_published",
		OrderBy:         "sort_order ASC, title ASC",
		ConflictMessage: "A page with this slug already exists",
	},
	{
		Name:  "gallery",
		Table: "gallery",
		Fields: []Field{
			title(),
			{Name: "album", Kind: KindString, MaxLen: maxTitle, Filterable: true},
			{Name: "description", Kind: KindText, MaxLen: maxText},
			imageURL(true),
			{Name: "thumbnail_url", Kind: KindURL},
			sortOrder(),
			flag("is_active", true),
		},
		WriteRole:    auth.RoleEditor,
		VisibleField: "is_active",
		OrderBy:      "album ASC, sort_order ASC, id DESC",
	},
	{
		Name:  "council",
		Table: "council",
		Fields: []Field{
			name(),
			{Name: "position", Kind: KindString, Required: true, MaxLen: maxTitle},
			imageURL(false),
			{Name: "email", Kind: KindEmail},
			{Name: "term", Kind: KindString, MaxLen: maxShort},
			sortOrder(),
		},
		WriteRole: auth.RoleAdmin,
		OrderBy:   "sort_order ASC, id ASC",
	},
	{
		Name:  "provincials",
		Table: "provincials",
		Fields: []Field{
			name(),
			{Name: "term_start", Kind: KindInt, Required: true, Min: 1800, Max: 2200},
			{Name: "term_end", Kind: KindInt, Nullable: true, Min: 1800, Max: 2200},
			imageURL(false),
			{Name: "biography", Kind: KindHTML, MaxLen: maxRich},
			sortOrder(),
		},
		WriteRole: auth.RoleAdmin,
		OrderBy:   "term_start DESC, sort_order ASC",
	},
	{
		Name:  "circulars",
		Table: "circulars",
		Fields: []Field{
			title(),
			{Name: "month", Kind: KindInt, Required: true, Min: 1, Max: 12, Filterable: true},
			{Name: "year", Kind: KindInt, Required: true, Min: 1900, Max: 2200, Filterable: true},
			{Name: "file_url", Kind: KindURL, Required: true},
			{Name: "summary", Kind: KindMarkdown, MaxLen: maxText},
		},
		WriteRole:       auth.RoleEditor,
		OrderBy:         "year DESC, month DESC",
		ConflictMessage: "A circular for this month and year already exists",
	},
	{
		Name:  "staff",
		Table: "staff",
		Fields: []Field{
			name(),
			{Name: "position", Kind: KindString, MaxLen: maxTitle},
			{Name: "community", Kind: KindString, MaxLen: maxTitle, Filterable: true},
			{Name: "email", Kind: KindEmail},
			{Name: "phone", Kind: KindString, MaxLen: maxPhone},
			imageURL(false),
			sortOrder(),
			flag("is_active", true),
		},
		WriteRole:    auth.RoleAdmin,
		VisibleField: "is_active",
		OrderBy:      "sort_order ASC, name ASC",
	},
	{
		Name:  "communities",
		Table: "communities",
		Fields: []Field{
			name(),
			{Name: "location", Kind: KindString, MaxLen: maxTitle},
			{Name: "address", Kind: KindText, MaxLen: maxAddress},
			{Name: "phone", Kind: KindString, MaxLen: maxPhone},
			{Name: "email", Kind: KindEmail},
			imageURL(false),
			flag("is_active", true),
		},
		WriteRole:    auth.RoleAdmin,
		VisibleField: "is_active",
		OrderBy:      "name ASC",
	},
	{
		Name:  "events",
		Table: "events",
		Fields: []Field{
			title(),
			{Name: "event_date", Kind: KindDate, Required: true},
			{Name: "location", Kind: KindString, MaxLen: maxTitle},
			{Name: "description", Kind: KindHTML, MaxLen: maxRich},
			flag("is_published", false),
		},
		WriteRole:    auth.RoleEditor,
		SoftDelete:   true,
		VisibleField: "is_published",
		OrderBy:      "event_date DESC, id DESC",
	},
}

// Lookup returns the resource with the given name.
func Lookup(name string) (*Schema, bool) {
	for _, s := range Registry {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

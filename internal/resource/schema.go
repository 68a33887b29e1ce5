// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package resource declares the content resources served under
// /api/<resource>/<action>. A Schema lists a resource's fields with their
// sanitizer kind; input validation, SQL column lists and response shaping
// are all derived from it.
package resource

import (
	"github.com/olegiv/province-cms/internal/store"
)

// Kind selects the sanitizer applied to a field.
type Kind int

// Field kinds.
const (
	KindString Kind = iota
	KindText
	KindInt
	KindBool
	KindURL
	KindEmail
	KindDate
	KindSlug
	KindHTML
	KindMarkdown
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindURL:
		return "url"
	case KindEmail:
		return "email"
	case KindDate:
		return "date"
	case KindSlug:
		return "slug"
	case KindHTML:
		return "html"
	case KindMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// Field describes one writable column.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Nullable bool // empty input is stored as NULL instead of a zero value
	MaxLen   int
	Min, Max int64 // inclusive bounds for KindInt
	Default  any   // stored on create when the field is absent

	// SlugFrom names the field a KindSlug value is derived from when the
	// client leaves it empty.
	SlugFrom string

	// Filterable fields may be used as exact-match list filters.
	Filterable bool
}

// Schema describes a resource.
type Schema struct {
	Name   string // URL segment and audit resource name
	Table  string
	Fields []Field

	// WriteRole is the minimum role for create, update and delete.
	WriteRole string

	SoftDelete bool

	// VisibleField is a boolean field hiding rows from anonymous readers.
	VisibleField string

	OrderBy string

	// ConflictMessage is returned when a unique index rejects a write.
	ConflictMessage string
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SlugField returns the schema's slug field, if any.
func (s *Schema) SlugField() (Field, bool) {
	for _, f := range s.Fields {
		if f.Kind == KindSlug {
			return f, true
		}
	}
	return Field{}, false
}

// StoreTable returns the table descriptor used by the record store.
func (s *Schema) StoreTable() store.Table {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return store.Table{
		Name:          s.Table,
		Columns:       cols,
		SoftDelete:    s.SoftDelete,
		VisibleColumn: s.VisibleField,
		OrderBy:       s.OrderBy,
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/sanitize"
	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/util"
)

// Mode selects how missing fields are treated.
type Mode int

const (
	// ModeCreate requires every required field and fills defaults.
	ModeCreate Mode = iota
	// ModeReplace requires every required field; absent optional fields
	// are reset to their defaults.
	ModeReplace
	// ModePatch touches only the fields present in the input.
	ModePatch
)

// ErrNoFields is returned by a patch that names no writable field.
var ErrNoFields = apperror.Validation("No fields to update")

// readOnly keys are accepted in input and ignored.
var readOnly = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"deleted_at": true,
	"csrf_token": true,
}

// Sanitize validates raw JSON input against the schema and returns the
// column values to store. Validation failures are reported together as a
// single apperror with per-field messages.
func (s *Schema) Sanitize(input map[string]any, mode Mode) (store.Record, error) {
	errs := make(map[string]string)
	for key := range input {
		if readOnly[key] {
			continue
		}
		if _, ok := s.Field(key); !ok {
			errs[key] = "unknown field"
		}
	}

	out := make(store.Record)
	for _, f := range s.Fields {
		raw, present := input[f.Name]
		if !present && mode == ModePatch {
			continue
		}

		if f.Kind == KindSlug {
			slug, err := s.slugValue(f, input, mode)
			if err != nil {
				errs[f.Name] = err.Error()
				continue
			}
			if slug != "" || mode != ModePatch {
				out[f.Name] = slug
			}
			continue
		}

		if !present {
			out[f.Name] = f.zero()
			if f.Required {
				errs[f.Name] = "is required"
			}
			continue
		}

		v, err := f.clean(raw)
		if err != nil {
			errs[f.Name] = strings.TrimPrefix(err.Error(), sanitize.ErrInvalid.Error()+": ")
			continue
		}
		if isEmpty(v) {
			if f.Required {
				errs[f.Name] = "is required"
				continue
			}
			v = f.zero()
		}
		out[f.Name] = v
	}

	if len(errs) > 0 {
		return nil, validationError(errs)
	}
	if mode == ModePatch && len(out) == 0 {
		return nil, ErrNoFields
	}
	return out, nil
}

// slugValue resolves a slug field. An explicit value is normalized; an
// empty one is derived from the SlugFrom field. A patch that does not
// mention the slug keeps the stored one, so renaming a record keeps its URL.
func (s *Schema) slugValue(f Field, input map[string]any, mode Mode) (string, error) {
	raw, present := input[f.Name]
	if mode == ModePatch && !present {
		return "", nil
	}

	given, ok := raw.(string)
	if raw != nil && !ok {
		return "", errors.New("must be text")
	}
	if given = strings.TrimSpace(given); given != "" {
		slug := util.Slugify(given)
		if !util.IsValidSlug(slug) {
			return "", errors.New("invalid slug format (use letters, numbers and hyphens)")
		}
		return slug, nil
	}

	source, _ := input[f.SlugFrom].(string)
	if strings.TrimSpace(source) == "" {
		if f.Required || mode == ModePatch {
			return "", errors.New("is required")
		}
		return "", nil
	}
	slug := util.Slugify(source)
	if !util.IsValidSlug(slug) {
		return "", fmt.Errorf("could not be derived from %s; provide one explicitly", f.SlugFrom)
	}
	return slug, nil
}

// clean runs the field's sanitizer.
func (f Field) clean(raw any) (any, error) {
	switch f.Kind {
	case KindString:
		return sanitize.String(raw, f.MaxLen)
	case KindText:
		return sanitize.Text(raw, f.MaxLen)
	case KindInt:
		if raw == nil || raw == "" {
			return nil, nil
		}
		lo, hi := f.Min, f.Max
		if lo == 0 && hi == 0 {
			lo, hi = math.MinInt32, math.MaxInt32
		}
		return sanitize.Int(raw, lo, hi)
	case KindBool:
		return sanitize.Bool(raw)
	case KindURL:
		return sanitize.URL(raw)
	case KindEmail:
		return sanitize.Email(raw)
	case KindDate:
		return sanitize.Date(raw)
	case KindHTML:
		return sanitize.HTML(raw, f.MaxLen)
	case KindMarkdown:
		return sanitize.Markdown(raw, f.MaxLen)
	default:
		return nil, fmt.Errorf("unsupported kind %s", f.Kind)
	}
}

// zero is the value stored for an absent or empty optional field.
func (f Field) zero() any {
	if f.Default != nil {
		return f.Default
	}
	if f.Nullable {
		return nil
	}
	switch f.Kind {
	case KindInt:
		return int64(0)
	case KindBool:
		return false
	case KindDate:
		return nil
	default:
		return ""
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	default:
		return false
	}
}

// Filter sanitizes a list filter value for a filterable field.
func (s *Schema) Filter(name, raw string) (any, error) {
	f, ok := s.Field(name)
	if !ok || !f.Filterable {
		return nil, apperror.Validation(fmt.Sprintf("Cannot filter by %s", name))
	}
	v, err := f.clean(raw)
	if err != nil || isEmpty(v) {
		return nil, apperror.Validation(fmt.Sprintf("Invalid value for filter %s", name))
	}
	return v, nil
}

func validationError(errs map[string]string) error {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)

	e := apperror.ValidationFields(errs)
	e.Message = names[0] + " " + errs[names[0]]
	return e
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"strconv"
	"time"

	"github.com/olegiv/province-cms/internal/sanitize"
	"github.com/olegiv/province-cms/internal/store"
)

// Present converts a stored row into its JSON shape. Drivers disagree on
// how booleans, integers and dates come back, so every declared field is
// coerced to its kind.
func (s *Schema) Present(rec store.Record) map[string]any {
	out := make(map[string]any, len(rec))
	out["id"] = toInt(rec["id"])
	for _, f := range s.Fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = presentValue(f.Kind, v)
	}
	for _, ts := range []string{"created_at", "updated_at", "deleted_at"} {
		if v, ok := rec[ts]; ok {
			out[ts] = timestamp(v)
		}
	}
	return out
}

// PresentAll applies Present to every row.
func (s *Schema) PresentAll(recs []store.Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = s.Present(r)
	}
	return out
}

func presentValue(k Kind, v any) any {
	if v == nil {
		return nil
	}
	switch k {
	case KindInt:
		return toInt(v)
	case KindBool:
		return toBool(v)
	case KindDate:
		return toDate(v)
	default:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
		return v
	}
}

func toInt(v any) any {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		return parseInt(string(x))
	case string:
		return parseInt(x)
	default:
		return v
	}
}

func parseInt(s string) any {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return n
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case []byte:
		return string(x) == "1" || string(x) == "true"
	case string:
		return x == "1" || x == "true"
	default:
		return false
	}
}

func toDate(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(sanitize.DateLayout)
	case []byte:
		return toDate(string(x))
	case string:
		if len(x) >= len(sanitize.DateLayout) {
			return x[:len(sanitize.DateLayout)]
		}
		return x
	default:
		return v
	}
}

func timestamp(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	default:
		return v
	}
}

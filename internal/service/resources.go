// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/resource"
	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/util"
)

// Pagination limits for list endpoints.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// maxSlugAttempts bounds the numeric suffixes tried for a derived slug.
const maxSlugAttempts = 50

// ListParams selects a page of records.
type ListParams struct {
	Page          int64
	PerPage       int64
	IncludeHidden bool
	Filters       map[string]any
}

// Page is one page of presented records.
type Page struct {
	Items   []map[string]any `json:"items"`
	Total   int64            `json:"total"`
	Page    int64            `json:"page"`
	PerPage int64            `json:"per_page"`
}

// ResourceService implements CRUD for the declared content resources.
type ResourceService struct {
	records *store.RecordStore
	now     func() time.Time
}

// NewResourceService creates a resource service. A nil now uses time.Now.
func NewResourceService(db *sql.DB, dialect store.Dialect, now func() time.Time) *ResourceService {
	if now == nil {
		now = time.Now
	}
	return &ResourceService{records: store.NewRecordStore(db, dialect), now: now}
}

// List returns a page of records in the schema's order.
func (s *ResourceService) List(ctx context.Context, schema *resource.Schema, p ListParams) (Page, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	p.PerPage = min(p.PerPage, MaxPerPage)

	rows, total, err := s.records.List(ctx, schema.StoreTable(), store.ListOptions{
		IncludeHidden: p.IncludeHidden,
		Filters:       p.Filters,
		Limit:         p.PerPage,
		Offset:        (p.Page - 1) * p.PerPage,
	})
	if err != nil {
		return Page{}, err
	}
	return Page{
		Items:   schema.PresentAll(rows),
		Total:   total,
		Page:    p.Page,
		PerPage: p.PerPage,
	}, nil
}

// Get returns one record by id.
func (s *ResourceService) Get(ctx context.Context, schema *resource.Schema, id int64, includeHidden bool) (map[string]any, error) {
	rec, err := s.records.Get(ctx, schema.StoreTable(), id, includeHidden)
	if err != nil {
		return nil, notFound(schema, err)
	}
	return schema.Present(rec), nil
}

// GetBySlug returns one record by slug.
func (s *ResourceService) GetBySlug(ctx context.Context, schema *resource.Schema, slug string, includeHidden bool) (map[string]any, error) {
	f, ok := schema.SlugField()
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("%s cannot be looked up by slug", schema.Name))
	}
	rec, err := s.records.GetBy(ctx, schema.StoreTable(), f.Name, slug, includeHidden)
	if err != nil {
		return nil, notFound(schema, err)
	}
	return schema.Present(rec), nil
}

// Create validates input and inserts a record. A slug derived from the
// title gets a numeric suffix when it is already taken; an explicit slug
// that is taken is a conflict.
func (s *ResourceService) Create(ctx context.Context, schema *resource.Schema, input map[string]any) (int64, map[string]any, error) {
	values, err := schema.Sanitize(input, resource.ModeCreate)
	if err != nil {
		return 0, nil, err
	}

	table := schema.StoreTable()
	if f, ok := schema.SlugField(); ok && slugDerived(input, f.Name) {
		if values[f.Name], err = s.uniqueSlug(ctx, table, f.Name, values[f.Name].(string)); err != nil {
			return 0, nil, err
		}
	}

	id, err := s.records.Insert(ctx, table, values, s.now().UTC())
	if err != nil {
		return 0, nil, conflict(schema, err)
	}
	rec, err := s.records.Get(ctx, table, id, true)
	if err != nil {
		return 0, nil, err
	}
	return id, schema.Present(rec), nil
}

// Update validates input and changes a live record. With ModePatch only
// the given fields change; an input without writable fields is rejected
// before the database is touched.
func (s *ResourceService) Update(ctx context.Context, schema *resource.Schema, id int64, input map[string]any, mode resource.Mode) (map[string]any, error) {
	values, err := schema.Sanitize(input, mode)
	if err != nil {
		return nil, err
	}

	table := schema.StoreTable()
	if err := s.records.Update(ctx, table, id, values, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(schema, err)
		}
		return nil, conflict(schema, err)
	}
	rec, err := s.records.Get(ctx, table, id, true)
	if err != nil {
		return nil, err
	}
	return schema.Present(rec), nil
}

// Delete soft-deletes or removes a record.
func (s *ResourceService) Delete(ctx context.Context, schema *resource.Schema, id int64) error {
	if err := s.records.Delete(ctx, schema.StoreTable(), id, s.now().UTC()); err != nil {
		return notFound(schema, err)
	}
	return nil
}

// Restore undeletes a soft-deleted record.
func (s *ResourceService) Restore(ctx context.Context, schema *resource.Schema, id int64) (map[string]any, error) {
	if !schema.SoftDelete {
		return nil, apperror.Validation(fmt.Sprintf("%s records cannot be restored", schema.Name))
	}
	table := schema.StoreTable()
	if err := s.records.Restore(ctx, table, id, s.now().UTC()); err != nil {
		return nil, notFound(schema, err)
	}
	rec, err := s.records.Get(ctx, table, id, true)
	if err != nil {
		return nil, err
	}
	return schema.Present(rec), nil
}

// PurgeDeleted permanently removes records of every soft-delete resource
// that were deleted longer than retention ago.
func (s *ResourceService) PurgeDeleted(ctx context.Context, schemas []*resource.Schema, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)
	var total int64
	for _, schema := range schemas {
		if !schema.SoftDelete {
			continue
		}
		n, err := s.records.PurgeDeleted(ctx, schema.StoreTable(), cutoff)
		if err != nil {
			return total, fmt.Errorf("purging %s: %w", schema.Name, err)
		}
		if n > 0 {
			slog.InfoContext(ctx, "purged deleted records", "resource", schema.Name, "count", n)
		}
		total += n
	}
	return total, nil
}

func (s *ResourceService) uniqueSlug(ctx context.Context, table store.Table, column, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		taken, err := s.records.Exists(ctx, table, column, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix := "-" + strconv.Itoa(i)
		candidate = strings.TrimRight(truncate(base, util.MaxSlugLength-len(suffix)), "-") + suffix
	}
	return "", apperror.Conflict("Could not find a free slug; provide one explicitly")
}

// slugDerived reports whether the client left the slug to be derived.
func slugDerived(input map[string]any, field string) bool {
	v, ok := input[field]
	if !ok || v == nil {
		return true
	}
	str, ok := v.(string)
	return ok && strings.TrimSpace(str) == ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func notFound(schema *resource.Schema, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(fmt.Sprintf("%s record not found", schema.Name))
	}
	return err
}

func conflict(schema *resource.Schema, err error) error {
	if !apperror.IsUniqueViolation(err) {
		return err
	}
	msg := schema.ConflictMessage
	if msg == "" {
		msg = "A record with this slug already exists"
	}
	e := apperror.Conflict(msg)
	e.Internal = err
	return e
}

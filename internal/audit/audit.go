// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package audit records successful mutations in the append-only audit
// log. Recording is best effort: a failed write is logged and never
// fails the operation that triggered it.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mileusna/useragent"

	"github.com/olegiv/province-cms/internal/geoip"
	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/util"
)

// Actions.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionRestore = "restore"
	ActionUpload  = "upload"
	ActionLogin   = "login"
	ActionLogout  = "logout"
	ActionUnlock  = "unlock"
)

// maxUserAgent bounds the stored User-Agent header.
const maxUserAgent = 512

// Actor identifies who performed an action.
type Actor struct {
	ID       int64
	Username string
}

// Event describes one mutation.
type Event struct {
	Action     string
	Resource   string
	ResourceID int64
	Details    map[string]any
}

// Entry is the JSON shape of an audit log row.
type Entry struct {
	ID            int64           `json:"id"`
	Action        string          `json:"action"`
	Resource      string          `json:"resource"`
	ResourceID    *int64          `json:"resource_id"`
	ActorID       *int64          `json:"actor_id"`
	ActorUsername string          `json:"actor_username"`
	IP            string          `json:"ip"`
	UserAgent     string          `json:"user_agent"`
	UASummary     string          `json:"ua_summary"`
	Country       string          `json:"country"`
	Details       json.RawMessage `json:"details"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Service writes and reads the audit log.
type Service struct {
	queries *store.Queries
	geo     *geoip.Lookup
	now     func() time.Time
}

// NewService creates an audit service. geo may be nil.
func NewService(queries *store.Queries, geo *geoip.Lookup, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if geo == nil {
		geo = &geoip.Lookup{}
	}
	return &Service{queries: queries, geo: geo, now: now}
}

// Record appends ev performed by actor during r.
func (s *Service) Record(ctx context.Context, r *http.Request, actor Actor, ev Event) {
	details := "{}"
	if len(ev.Details) > 0 {
		if b, err := json.Marshal(ev.Details); err == nil {
			details = string(b)
		}
	}

	ip := util.ClientIP(r)
	ua := clampUTF8(r.UserAgent(), maxUserAgent)

	params := store.CreateAuditEntryParams{
		Action:        ev.Action,
		Resource:      ev.Resource,
		ResourceID:    nullID(ev.ResourceID),
		ActorID:       nullID(actor.ID),
		ActorUsername: actor.Username,
		IP:            ip,
		UserAgent:     ua,
		UASummary:     Summarize(ua),
		Country:       s.geo.Country(ip),
		Details:       details,
		CreatedAt:     s.now().UTC(),
	}

	// The entry is written even if the client has gone away.
	if err := s.queries.CreateAuditEntry(context.WithoutCancel(ctx), params); err != nil {
		slog.ErrorContext(ctx, "failed to write audit entry",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"error", err,
		)
	}
}

// List returns a page of entries, newest first, and the total count.
func (s *Service) List(ctx context.Context, f store.AuditFilter, limit, offset int64) ([]Entry, int64, error) {
	total, err := s.queries.CountAuditEntries(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.queries.ListAuditEntries(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e := Entry{
			ID:            row.ID,
			Action:        row.Action,
			Resource:      row.Resource,
			ActorUsername: row.ActorUsername,
			IP:            row.IP,
			UserAgent:     row.UserAgent,
			UASummary:     row.UASummary,
			Country:       row.Country,
			Details:       json.RawMessage(row.Details),
			CreatedAt:     row.CreatedAt.UTC(),
		}
		if !json.Valid(e.Details) {
			e.Details = json.RawMessage("{}")
		}
		if row.ResourceID.Valid {
			e.ResourceID = &row.ResourceID.Int64
		}
		if row.ActorID.Valid {
			e.ActorID = &row.ActorID.Int64
		}
		entries = append(entries, e)
	}
	return entries, total, nil
}

// Prune deletes entries older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.queries.DeleteAuditEntriesBefore(ctx, s.now().UTC().Add(-retention))
}

// Summarize condenses a User-Agent header to "Browser / OS (device)".
func Summarize(uaString string) string {
	if uaString == "" {
		return ""
	}
	ua := useragent.Parse(uaString)

	browser, os := ua.Name, ua.OS
	if browser == "" {
		browser = "Unknown"
	}
	if os == "" {
		os = "Unknown"
	}

	device := "desktop"
	switch {
	case ua.Bot:
		device = "bot"
	case ua.Tablet:
		device = "tablet"
	case ua.Mobile:
		device = "mobile"
	}
	return browser + " / " + os + " (" + device + ")"
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

// clampUTF8 drops invalid bytes from s and cuts it to at most n bytes
// without splitting a rune.
func clampUTF8(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

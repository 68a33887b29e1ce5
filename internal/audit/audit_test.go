// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package audit

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/province-cms/internal/store"
	"github.com/olegiv/province-cms/internal/testutil"
)

const firefoxUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0"

func TestRecordAndList(t *testing.T) {
	db := testutil.TestDB(t)
	clock := testutil.NewClock()
	svc := NewService(store.New(db, store.DialectSQLite), nil, clock.Now)
	ctx := context.Background()

	r := httptest.NewRequest("POST", "/api/news/create", nil)
	r.RemoteAddr = "192.168.1.20:51234"
	r.Header.Set("User-Agent", firefoxUA)

	svc.Record(ctx, r, Actor{ID: 1, Username: "admin"}, Event{
		Action:     ActionCreate,
		Resource:   "news",
		ResourceID: 42,
		Details:    map[string]any{"title": "Hello"},
	})
	clock.Advance(time.Minute)
	svc.Record(ctx, r, Actor{ID: 1, Username: "admin"}, Event{Action: ActionUpload, Resource: "upload"})

	entries, total, err := svc.List(ctx, store.AuditFilter{}, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, entries, 2)

	assert.Equal(t, ActionUpload, entries[0].Action, "newest first")
	assert.Nil(t, entries[0].ResourceID)

	e := entries[1]
	assert.Equal(t, "news", e.Resource)
	require.NotNil(t, e.ResourceID)
	assert.EqualValues(t, 42, *e.ResourceID)
	assert.Equal(t, "192.168.1.20", e.IP)
	assert.Equal(t, "LOCAL", e.Country)
	assert.Equal(t, "Firefox / Windows (desktop)", e.UASummary)

	var details map[string]string
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, "Hello", details["title"])

	entries, total, err = svc.List(ctx, store.AuditFilter{Resource: "news"}, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, entries, 1)
}

func TestRecord_SwallowsErrors(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(store.New(db, store.DialectSQLite), nil, nil)
	require.NoError(t, db.Close())

	r := httptest.NewRequest("DELETE", "/api/news/delete?id=1", nil)
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), r, Actor{ID: 1, Username: "admin"}, Event{Action: ActionDelete, Resource: "news", ResourceID: 1})
	})
}

func TestPrune(t *testing.T) {
	db := testutil.TestDB(t)
	clock := testutil.NewClock()
	svc := NewService(store.New(db, store.DialectSQLite), nil, clock.Now)
	ctx := context.Background()
	r := httptest.NewRequest("POST", "/", nil)

	svc.Record(ctx, r, Actor{}, Event{Action: ActionLogin, Resource: "auth"})
	clock.Advance(48 * time.Hour)
	svc.Record(ctx, r, Actor{}, Event{Action: ActionLogin, Resource: "auth"})

	n, err := svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "", Summarize(""))
	assert.Equal(t, "Firefox / Windows (desktop)", Summarize(firefoxUA))
	assert.Contains(t, Summarize("Googlebot/2.1 (+http://www.google.com/bot.html)"), "(bot)")
}

func TestRecord_ClampsUserAgentOnRuneBoundary(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(store.New(db, store.DialectSQLite), nil, nil)

	// 511 ASCII bytes followed by a two-byte rune straddles the limit.
	ua := strings.Repeat("a", maxUserAgent-1) + "é" + "tail"
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", ua)
	svc.Record(context.Background(), r, Actor{}, Event{Action: ActionLogin, Resource: "session"})

	entries, _, err := svc.List(context.Background(), store.AuditFilter{}, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0].UserAgent
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxUserAgent-1), got)
}

func TestClampUTF8(t *testing.T) {
	assert.Equal(t, "abc", clampUTF8("abc", 10))
	assert.Equal(t, "ab", clampUTF8("ab\xffc", 2), "invalid bytes are dropped first")
	assert.Equal(t, "Ł", clampUTF8("Łódź", 3))
	assert.Empty(t, clampUTF8("Ł", 1))
}

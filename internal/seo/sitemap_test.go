// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"encoding/xml"
	"strconv"
	"strings"
	"testing"
	"time"
)

func parse(t *testing.T, b *SitemapBuilder) urlSet {
	t.Helper()
	out, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.HasPrefix(string(out), xml.Header) {
		t.Error("Build() should start with the XML header")
	}
	if !strings.Contains(string(out), `<urlset xmlns="`+XMLNamespace+`">`) {
		t.Errorf("missing sitemap namespace in %s", out)
	}
	var set urlSet
	if err := xml.Unmarshal(out, &set); err != nil {
		t.Fatalf("output is not valid XML: %v", err)
	}
	return set
}

func TestSitemap_Homepage(t *testing.T) {
	b := NewSitemapBuilder("https://example.com/")
	b.AddHomepage()

	set := parse(t, b)
	if len(set.URLs) != 1 {
		t.Fatalf("got %d URLs, want 1", len(set.URLs))
	}
	home := set.URLs[0]
	if home.Loc != "https://example.com/" {
		t.Errorf("Loc = %q, want trailing slash of the base trimmed", home.Loc)
	}
	if home.Priority != "1.0" || home.ChangeFreq != Daily {
		t.Errorf("home = %+v", home)
	}
}

func TestSitemap_Entries(t *testing.T) {
	b := NewSitemapBuilder("https://example.com")
	updated := time.Date(2025, 1, 15, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	if !b.Add(Entry{Path: "news/feast-day", Updated: updated, Freq: Monthly, Priority: 0.6}) {
		t.Fatal("Add() = false for a new path")
	}
	if b.Add(Entry{Path: "/news/feast-day"}) {
		t.Error("Add() = true for a duplicate path")
	}
	b.Add(Entry{Path: "/events", Freq: Weekly})

	set := parse(t, b)
	if len(set.URLs) != 2 {
		t.Fatalf("got %d URLs, want 2", len(set.URLs))
	}
	news, events := set.URLs[0], set.URLs[1]
	if news.Loc != "https://example.com/news/feast-day" {
		t.Errorf("Loc = %q", news.Loc)
	}
	if news.LastMod != "2025-01-15T09:00:00Z" {
		t.Errorf("LastMod = %q, want UTC RFC3339", news.LastMod)
	}
	if news.Priority != "0.6" {
		t.Errorf("Priority = %q", news.Priority)
	}
	if events.LastMod != "" || events.Priority != "" {
		t.Errorf("zero fields should be omitted: %+v", events)
	}
}

func TestSitemap_Limit(t *testing.T) {
	b := NewSitemapBuilder("https://example.com")
	for i := range MaxURLs {
		b.Add(Entry{Path: "/p/" + strconv.Itoa(i)})
	}
	if !b.Full() {
		t.Error("Full() = false at MaxURLs")
	}
	if b.Add(Entry{Path: "/one-more"}) {
		t.Error("Add() past MaxURLs should be rejected")
	}
	if b.Len() != MaxURLs {
		t.Errorf("Len() = %d, want %d", b.Len(), MaxURLs)
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package seo builds the sitemap and robots.txt of the public site.
package seo

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
	"time"
)

const (
	// XMLNamespace is the sitemap XML namespace.
	XMLNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

	// MaxURLs is the sitemap protocol limit for a single file.
	MaxURLs = 50000
)

// ChangeFreq hints how often a page changes.
type ChangeFreq string

const (
	Daily   ChangeFreq = "daily"
	Weekly  ChangeFreq = "weekly"
	Monthly ChangeFreq = "monthly"
)

// Entry is one public page.
type Entry struct {
	Path     string
	Updated  time.Time // zero omits <lastmod>
	Freq     ChangeFreq
	Priority float64 // 0 omits <priority>
}

// urlSet and urlElem are the wire form of the document.
type urlSet struct {
	XMLName xml.Name  `xml:"urlset"`
	XMLNS   string    `xml:"xmlns,attr"`
	URLs    []urlElem `xml:"url"`
}

type urlElem struct {
	Loc        string     `xml:"loc"`
	LastMod    string     `xml:"lastmod,omitempty"`
	ChangeFreq ChangeFreq `xml:"changefreq,omitempty"`
	Priority   string     `xml:"priority,omitempty"`
}

// SitemapBuilder collects the pages of one site.
type SitemapBuilder struct {
	base    string
	entries []Entry
	seen    map[string]struct{}
}

// NewSitemapBuilder creates a builder for the site at base.
func NewSitemapBuilder(base string) *SitemapBuilder {
	return &SitemapBuilder{
		base: strings.TrimSuffix(base, "/"),
		seen: make(map[string]struct{}),
	}
}

// AddHomepage adds "/" with top priority.
func (b *SitemapBuilder) AddHomepage() {
	b.Add(Entry{Path: "/", Freq: Daily, Priority: 1})
}

// Add records e. It reports false for a path already added and once the
// builder holds MaxURLs entries.
func (b *SitemapBuilder) Add(e Entry) bool {
	if !strings.HasPrefix(e.Path, "/") {
		e.Path = "/" + e.Path
	}
	if _, dup := b.seen[e.Path]; dup || b.Full() {
		return false
	}
	b.seen[e.Path] = struct{}{}
	b.entries = append(b.entries, e)
	return true
}

// Len returns the number of collected pages.
func (b *SitemapBuilder) Len() int { return len(b.entries) }

// Full reports whether no more pages fit.
func (b *SitemapBuilder) Full() bool { return len(b.entries) >= MaxURLs }

// Build renders the sitemap document.
func (b *SitemapBuilder) Build() ([]byte, error) {
	set := urlSet{XMLNS: XMLNamespace, URLs: make([]urlElem, 0, len(b.entries))}
	for _, e := range b.entries {
		set.URLs = append(set.URLs, b.element(e))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (b *SitemapBuilder) element(e Entry) urlElem {
	el := urlElem{Loc: b.base + e.Path, ChangeFreq: e.Freq}
	if !e.Updated.IsZero() {
		el.LastMod = e.Updated.UTC().Format(time.RFC3339)
	}
	if e.Priority > 0 {
		el.Priority = strconv.FormatFloat(e.Priority, 'f', 1, 64)
	}
	return el
}

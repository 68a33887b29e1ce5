// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/province-cms/internal/resource"
	"github.com/olegiv/province-cms/internal/seo"
	"github.com/olegiv/province-cms/internal/service"
)

// seoMaxAge is how long crawlers may cache the sitemap and robots.txt.
const seoMaxAge = "public, max-age=3600"

// detailPaths maps resources with public detail pages to their SPA path
// prefix. Records are addressed by slug.
var detailPaths = map[string]string{
	"news":  "/news/",
	"pages": "/",
}

// noListingPage names resources shown only as part of other pages.
var noListingPage = map[string]bool{"banners": true}

// Sitemap lists the homepage, a listing page per public resource and the
// detail page of every visible news article and page.
func (h *Handler) Sitemap(siteURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := siteURL
		if base == "" {
			base = requestOrigin(r)
		}
		b := seo.NewSitemapBuilder(base)
		b.AddHomepage()

		for _, schema := range resource.Registry {
			if noListingPage[schema.Name] {
				continue
			}
			b.Add(seo.Entry{Path: "/" + schema.Name, Freq: seo.Weekly, Priority: 0.5})
		}

		for _, schema := range resource.Registry {
			prefix, ok := detailPaths[schema.Name]
			if !ok {
				continue
			}
			if err := h.addDetails(r, b, schema, prefix); err != nil {
				slog.ErrorContext(r.Context(), "building sitemap", "resource", schema.Name, "error", err)
				h.Responder.Error(w, r, err)
				return
			}
		}

		out, err := b.Build()
		if err != nil {
			h.Responder.Error(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Header().Set("Cache-Control", seoMaxAge)
		_, _ = w.Write(out)
	}
}

func (h *Handler) addDetails(r *http.Request, b *seo.SitemapBuilder, schema *resource.Schema, prefix string) error {
	for page := int64(1); ; page++ {
		res, err := h.Resources.List(r.Context(), schema, service.ListParams{Page: page, PerPage: service.MaxPerPage})
		if err != nil {
			return err
		}
		for _, item := range res.Items {
			slug, _ := item["slug"].(string)
			if slug == "" {
				continue
			}
			if b.Full() {
				return nil
			}
			b.Add(seo.Entry{
				Path:     prefix + slug,
				Updated:  parseTimestamp(item["updated_at"]),
				Freq:     seo.Monthly,
				Priority: 0.6,
			})
		}
		if page*res.PerPage >= res.Total || len(res.Items) == 0 {
			return nil
		}
	}
}

// Robots serves robots.txt. Staging sites block every crawler.
func Robots(siteURL string, disallowAll bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := siteURL
		if base == "" {
			base = requestOrigin(r)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", seoMaxAge)
		_, _ = w.Write([]byte(seo.BuildRobots(seo.RobotsConfig{SiteURL: base, DisallowAll: disallowAll})))
	}
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// timestampLayouts are the forms updated_at comes back in from the drivers.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"}

func parseTimestamp(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

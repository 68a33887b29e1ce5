// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"fmt"
	"slices"
	"strings"
)

// privatePaths keeps crawlers out of the API and the admin panel.
var privatePaths = []string{"/api/", "/admin", "/login"}

// RobotsConfig describes the robots.txt of one site.
type RobotsConfig struct {
	SiteURL       string // adds a Sitemap line when set
	DisallowAll   bool   // staging sites
	DisallowPaths []string
}

// BuildRobots renders robots.txt for every user agent.
func BuildRobots(cfg RobotsConfig) string {
	if cfg.DisallowAll {
		return "User-agent: *\nDisallow: /\n"
	}

	var sb strings.Builder
	sb.WriteString("User-agent: *\n")
	for _, p := range slices.Compact(slices.Concat(privatePaths, cfg.DisallowPaths)) {
		fmt.Fprintf(&sb, "Disallow: %s\n", p)
	}
	sb.WriteString("Allow: /\n")

	if cfg.SiteURL != "" {
		fmt.Fprintf(&sb, "\nSitemap: %s/sitemap.xml\n", strings.TrimSuffix(cfg.SiteURL, "/"))
	}
	return sb.String()
}

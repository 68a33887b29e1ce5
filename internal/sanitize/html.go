// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sanitize

import (
	"bytes"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once

	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// getPolicy returns the shared rich-text policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()

		// Editor output uses classes for alignment and figure captions.
		policy.AllowAttrs("class").Globally()
		policy.AllowElements("figure", "figcaption")
		policy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
		policy.RequireNoReferrerOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// HTML strips scripts, event handlers and javascript: URLs from rich text
// while keeping formatting markup.
func HTML(v any, maxLen int) (string, error) {
	s, err := rawString(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if maxLen > 0 && len(s) > maxLen {
		return "", invalid("must be at most %d bytes", maxLen)
	}
	if s == "" {
		return "", nil
	}
	return strings.TrimSpace(getPolicy().Sanitize(s)), nil
}

// Markdown renders v to HTML and sanitizes the result.
func Markdown(v any, maxLen int) (string, error) {
	s, err := rawString(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if maxLen > 0 && len(s) > maxLen {
		return "", invalid("must be at most %d bytes", maxLen)
	}
	if s == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err != nil {
		return "", invalid("markdown could not be rendered")
	}
	return strings.TrimSpace(getPolicy().Sanitize(buf.String())), nil
}

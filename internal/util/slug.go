// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides small helpers shared across packages: URL slugs
// and client address handling.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds generated slugs.
const MaxSlugLength = 120

var validSlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// stripMarks drops combining marks after canonical decomposition, so
// "é" loses its accent before transliteration.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts a title to a URL slug. Accents are removed and
// non-Latin scripts are transliterated, so "Święty Józef" becomes
// "swiety-jozef". Runs of anything other than letters and digits
// collapse into one hyphen.
func Slugify(s string) string {
	plain, _, err := transform.String(stripMarks, s)
	if err != nil {
		plain = s
	}
	plain = strings.ToLower(unidecode.Unidecode(plain))

	var b strings.Builder
	b.Grow(len(plain))
	gap := false
	for _, r := range plain {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			gap = false
			continue
		}
		gap = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

// IsValidSlug reports whether s is lowercase alphanumeric words joined by
// single hyphens and no longer than MaxSlugLength.
func IsValidSlug(s string) bool {
	return len(s) <= MaxSlugLength && validSlug.MatchString(s)
}

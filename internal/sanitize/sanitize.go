// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sanitize converts raw request values into clean, typed values.
// Every scalar an endpoint stores passes through one of these functions.
package sanitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrInvalid is wrapped by every sanitizer failure.
var ErrInvalid = errors.New("invalid value")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// rawString renders JSON scalars as text. Objects and arrays are rejected.
func rawString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", invalid("expected a text value")
	}
}

// String trims v, removes control characters and HTML-escapes the result.
// maxLen counts runes of the escaped value, which is what gets stored;
// zero means unlimited.
func String(v any, maxLen int) (string, error) {
	s, err := rawString(v)
	if err != nil {
		return "", err
	}
	return escapeBounded(strings.TrimSpace(stripControl(s, false)), maxLen)
}

// Text is String for multi-line values; newlines and tabs are kept.
func Text(v any, maxLen int) (string, error) {
	s, err := rawString(v)
	if err != nil {
		return "", err
	}
	return escapeBounded(strings.TrimSpace(stripControl(s, true)), maxLen)
}

func escapeBounded(s string, maxLen int) (string, error) {
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return "", invalid("must be at most %d characters", maxLen)
	}
	s = html.EscapeString(s)
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return "", invalid("must be at most %d characters once special characters are escaped", maxLen)
	}
	return s, nil
}

func stripControl(s string, keepNewlines bool) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			if keepNewlines {
				return r
			}
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// Int parses v as an integer within [lo, hi].
func Int(v any, lo, hi int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, invalid("must be a whole number")
		}
		n = i
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, invalid("must be a whole number")
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, invalid("must be a whole number")
		}
		n = i
	default:
		return 0, invalid("must be a whole number")
	}
	if n < lo || n > hi {
		return 0, invalid("must be between %d and %d", lo, hi)
	}
	return n, nil
}

// Bool accepts JSON booleans, 0/1 and the usual string spellings.
func Bool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case json.Number:
		switch x.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	case float64:
		switch x {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off", "":
			return false, nil
		}
	}
	return false, invalid("must be true or false")
}

// MaxURLLength bounds stored URLs in bytes.
const MaxURLLength = 2048

// URL accepts absolute http(s) URLs and site-relative paths starting with
// a single slash. Anything else, including javascript: and protocol-relative
// URLs, is rejected.
func URL(v any) (string, error) {
	s, err := rawString(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if len(s) > MaxURLLength {
		return "", invalid("URL exceeds maximum length of %d characters", MaxURLLength)
	}
	if strings.ContainsAny(s, " \t\r\n<>\"'\\") {
		return "", invalid("URL contains illegal characters")
	}

	if strings.HasPrefix(s, "/") {
		if strings.HasPrefix(s, "//") {
			return "", invalid("protocol-relative URLs are not allowed")
		}
		if _, err := url.ParseRequestURI(s); err != nil {
			return "", invalid("malformed path")
		}
		return s, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", invalid("malformed URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalid("URL must use http or https")
	}
	if u.Host == "" {
		return "", invalid("URL must have a host")
	}
	return u.String(), nil
}

// MaxEmailLength is the RFC 5321 path limit in bytes.
const MaxEmailLength = 254

// Email validates a bare address and returns it lowercased.
func Email(v any) (string, error) {
	s, err := rawString(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if len(s) > MaxEmailLength {
		return "", invalid("email is too long")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", invalid("must be a valid email address")
	}
	at := strings.LastIndex(s, "@")
	if !strings.Contains(s[at+1:], ".") {
		return "", invalid("must be a valid email address")
	}
	return strings.ToLower(s), nil
}

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

// Date validates a YYYY-MM-DD date.
func Date(v any) (string, error) {
	s, err := rawString(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", invalid("must be a date in YYYY-MM-DD format")
	}
	return t.Format(DateLayout), nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sanitize

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"trims", "  Feast Day  ", "Feast Day"},
		{"escapes markup", `<script>alert("x")</script>`, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;"},
		{"escapes ampersand", "Saints & Martyrs", "Saints &amp; Martyrs"},
		{"flattens newlines", "line1\nline2", "line1 line2"},
		{"drops control chars", "a\x00b\x07c", "abc"},
		{"nil is empty", nil, ""},
		{"number as text", json.Number("42"), "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.in, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := String(strings.Repeat("x", 11), 10)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = String(map[string]any{"a": 1}, 0)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestString_LimitAppliesToEscapedValue(t *testing.T) {
	got, err := String(strings.Repeat("a", 10), 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10), got)

	// "&" is stored as "&amp;", so two of them need ten runes.
	got, err = String("&&", 10)
	require.NoError(t, err)
	assert.Equal(t, "&amp;&amp;", got)

	_, err = String("&&a", 10)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Text(strings.Repeat("\"", 3), 10)
	assert.ErrorIs(t, err, ErrInvalid)

	got, err = String("héllo", 5)
	require.NoError(t, err)
	assert.Equal(t, "héllo", got)
}

func TestText_KeepsNewlines(t *testing.T) {
	got, err := Text(" first\nsecond <b> ", 0)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond &lt;b&gt;", got)
}

func TestInt(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{json.Number("12"), 12, false},
		{float64(7), 7, false},
		{"2025", 2025, false},
		{" 3 ", 3, false},
		{json.Number("1.5"), 0, true},
		{float64(1.5), 0, true},
		{"12abc", 0, true},
		{"1; DROP TABLE news", 0, true},
		{true, 0, true},
		{json.Number("13"), 0, true}, // out of range
	}
	for _, tt := range tests {
		got, err := Int(tt.in, 1, 12)
		if tt.in == "2025" {
			got, err = Int(tt.in, 1900, 2100)
		}
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalid, "input %v", tt.in)
			continue
		}
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestBool(t *testing.T) {
	for _, in := range []any{true, json.Number("1"), float64(1), "true", "on", "YES"} {
		got, err := Bool(in)
		require.NoError(t, err)
		assert.True(t, got, "input %v", in)
	}
	for _, in := range []any{false, json.Number("0"), "0", "off", ""} {
		got, err := Bool(in)
		require.NoError(t, err)
		assert.False(t, got, "input %v", in)
	}
	_, err := Bool("maybe")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Bool(json.Number("2"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestURL(t *testing.T) {
	valid := map[string]string{
		"https://example.org/news?id=1":   "https://example.org/news?id=1",
		"  http://example.org  ":          "http://example.org",
		"/uploads/images/2025/01/a.jpg":   "/uploads/images/2025/01/a.jpg",
		"":                                "",
	}
	for in, want := range valid {
		got, err := URL(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{
		"javascript:alert(1)",
		"data:text/html;base64,PHNjcmlwdD4=",
		"//evil.example.com/x",
		"ftp://example.org/file",
		"https://",
		"https://example.org/<script>",
		"relative/path",
		"https://" + strings.Repeat("a", 2100) + ".com",
	} {
		_, err := URL(in)
		assert.ErrorIs(t, err, ErrInvalid, "input %q", in)
	}
}

func TestEmail(t *testing.T) {
	got, err := Email(" Secretary@Province.ORG ")
	require.NoError(t, err)
	assert.Equal(t, "secretary@province.org", got)

	got, err = Email("")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, in := range []string{"not-an-email", "a@b", "Name <a@b.org>", "a@@b.org", "<a@b.org>"} {
		_, err := Email(in)
		assert.True(t, errors.Is(err, ErrInvalid), "input %q", in)
	}
}

func TestDate(t *testing.T) {
	got, err := Date("2025-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", got)

	for _, in := range []string{"2025-02-30", "28/02/2025", "2025-2-8", "yesterday"} {
		_, err := Date(in)
		assert.ErrorIs(t, err, ErrInvalid, "input %q", in)
	}
}

func TestHTML(t *testing.T) {
	got, err := HTML(`<p onclick="steal()">Hello <strong>world</strong><script>alert(1)</script></p>`, 0)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello <strong>world</strong></p>", got)

	got, err = HTML(`<a href="javascript:alert(1)">x</a>`, 0)
	require.NoError(t, err)
	assert.NotContains(t, got, "javascript:")

	_, err = HTML(strings.Repeat("a", 20), 10)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMarkdown(t *testing.T) {
	got, err := Markdown("# Circular\n\nRead **carefully**.\n\n<script>x()</script>", 0)
	require.NoError(t, err)
	assert.Contains(t, got, "<h1>Circular</h1>")
	assert.Contains(t, got, "<strong>carefully</strong>")
	assert.NotContains(t, got, "<script>")
}

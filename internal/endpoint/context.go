// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/session"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// Context is the per-request state passed to handlers: the request, the
// lazily decoded body, the caller's identity and the response writer.
type Context struct {
	W        http.ResponseWriter
	R        *http.Request
	Sessions *session.Manager

	raw     []byte
	rawErr  error
	rawRead bool

	body    map[string]any
	bodyErr error
	decoded bool
}

// NewContext wraps one request.
func NewContext(w http.ResponseWriter, r *http.Request, sessions *session.Manager) *Context {
	return &Context{W: w, R: r, Sessions: sessions}
}

// Ctx returns the request context.
func (c *Context) Ctx() context.Context {
	return c.R.Context()
}

// Identity returns the authenticated caller. Public routes see an
// identity only when the session is valid.
func (c *Context) Identity() (session.Identity, bool) {
	return IdentityFrom(c.R.Context())
}

// Query returns a trimmed query parameter.
func (c *Context) Query(key string) string {
	return strings.TrimSpace(c.R.URL.Query().Get(key))
}

// QueryInt parses a positive integer query parameter. def is returned
// when the parameter is absent.
func (c *Context) QueryInt(key string, def int64) (int64, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, apperror.Validation(fmt.Sprintf("%s must be a positive integer", key))
	}
	return n, nil
}

// ID returns the record id from the query string or, failing that, the
// JSON body.
func (c *Context) ID() (int64, error) {
	if c.Query("id") != "" {
		return c.QueryInt("id", 0)
	}
	if c.isJSON() {
		body, err := c.Body()
		if err != nil {
			return 0, err
		}
		if id, ok := positiveInt(body["id"]); ok {
			return id, nil
		}
	}
	return 0, apperror.Validation("Missing or invalid id")
}

// Body returns the JSON request body as a map. Numbers are kept as
// json.Number. An empty body yields an empty map.
func (c *Context) Body() (map[string]any, error) {
	if c.decoded {
		return c.body, c.bodyErr
	}
	c.decoded = true

	raw, err := c.Raw()
	if err != nil {
		c.bodyErr = err
		return nil, err
	}
	c.body = make(map[string]any)
	if len(bytes.TrimSpace(raw)) == 0 {
		return c.body, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&c.body); err != nil {
		c.body = nil
		c.bodyErr = apperror.Validation("Invalid JSON body")
		return nil, c.bodyErr
	}
	return c.body, nil
}

// Decode unmarshals the JSON body into v.
func (c *Context) Decode(v any) error {
	raw, err := c.Raw()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return apperror.Validation("Request body is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperror.Validation("Invalid JSON body")
	}
	return nil
}

// Raw returns the request body bytes, reading at most MaxBodyBytes.
func (c *Context) Raw() ([]byte, error) {
	if c.rawRead {
		return c.raw, c.rawErr
	}
	c.rawRead = true
	c.raw, c.rawErr = ReadBody(c.R, MaxBodyBytes)
	return c.raw, c.rawErr
}

// ReadBody reads r's body up to limit bytes and puts an equivalent reader
// back so later readers see the same bytes.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if IsTooLarge(err) {
		return nil, apperror.TooLarge("Request body too large")
	}
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, apperror.TooLarge("Request body too large")
	}
	return raw, nil
}

// JSON writes a success envelope with the given status.
func (c *Context) JSON(status int, data map[string]any) error {
	WriteSuccess(c.W, status, data)
	return nil
}

// OK writes a 200 success envelope.
func (c *Context) OK(data map[string]any) error {
	return c.JSON(http.StatusOK, data)
}

func (c *Context) isJSON() bool {
	ct := c.R.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}

func positiveInt(v any) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, false
		}
		n = i
	case float64:
		n = int64(x)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	return n, n > 0
}

// IsTooLarge reports whether err is a body size rejection.
func IsTooLarge(err error) bool {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Type == apperror.TypeTooLarge
	}
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package client is a Go client for the province CMS API. It follows the
// same session and CSRF contract as the browser app: cookies carry the
// session and every mutating request sends the X-CSRF-Token header.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// CSRFHeader carries the CSRF token in both directions.
	CSRFHeader = "X-CSRF-Token"

	// CheckPath is the session check endpoint the token is fetched from.
	CheckPath = "/api/auth/check"

	// DefaultTimeout is the HTTP client timeout used by New.
	DefaultTimeout = 30 * time.Second

	// MaxResponseLen caps how much of a response body is read.
	MaxResponseLen = 10 << 20

	userAgent = "provincectl/1.0"
)

// ErrInvalidResponse is returned when the server answers with something
// that is not a JSON object.
var ErrInvalidResponse = errors.New("invalid response from server")

// Error is an error answer from the API.
type Error struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an API error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one province CMS server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	// OnUnauthenticated is called when a request other than the session
	// check comes back 401. The browser app redirects to the login page.
	OnUnauthenticated func()

	mu    sync.Mutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. A cookie jar is added when the
// client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithOnUnauthenticated sets the 401 hook.
func WithOnUnauthenticated(fn func()) Option {
	return func(c *Client) { c.OnUnauthenticated = fn }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Token returns the cached CSRF token, which may be empty.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Do sends a JSON request and decodes the JSON object answer into out,
// which may be nil. Mutating requests carry the CSRF token, fetched from
// the session check on first use.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	return c.send(ctx, method, path, "application/json", r, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	if isMutating(method) {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set(CSRFHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if token := resp.Header.Get(CSRFHeader); token != "" {
		c.setToken(token)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.setToken("")
		if path != CheckPath && c.OnUnauthenticated != nil {
			c.OnUnauthenticated()
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope == nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return ErrInvalidResponse
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var msg string
		if json.Unmarshal(envelope["error"], &msg) == nil && msg != "" {
			apiErr.Message = msg
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return nil
}

// ensureToken returns the cached token or fetches one from the session check.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if token := c.Token(); token != "" {
		return token, nil
	}
	if _, err := c.Check(ctx); err != nil {
		return "", fmt.Errorf("fetching CSRF token: %w", err)
	}
	token := c.Token()
	if token == "" {
		return "", fmt.Errorf("fetching CSRF token: %w", ErrInvalidResponse)
	}
	return token, nil
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// User is the public shape of an account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// Session is the answer of the session check.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	User          *User  `json:"user,omitempty"`
	CSRFToken     string `json:"csrf_token"`
}

// Page is one page of a resource listing.
type Page struct {
	Items   []map[string]any `json:"items"`
	Total   int64            `json:"total"`
	Page    int64            `json:"page"`
	PerPage int64            `json:"per_page"`
}

// Upload describes a stored image.
type Upload struct {
	Path      string `json:"path"`
	Thumbnail string `json:"thumbnail"`
	MimeType  string `json:"mime"`
	Size      int64  `json:"size"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Check asks the server for the session state. It always succeeds against
// a healthy server and refreshes the cached CSRF token.
func (c *Client) Check(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.Do(ctx, http.MethodGet, CheckPath, nil, &s); err != nil {
		return nil, err
	}
	if s.CSRFToken != "" {
		c.setToken(s.CSRFToken)
	}
	return &s, nil
}

// Login signs in and returns the account.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var out struct {
		User      User   `json:"user"`
		CSRFToken string `json:"csrf_token"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", in, &out); err != nil {
		return nil, err
	}
	if out.CSRFToken != "" {
		c.setToken(out.CSRFToken)
	}
	return &out.User, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.setToken("")
	return nil
}

// List returns a page of resource records. query may hold page, per_page
// and filter values.
func (c *Client) List(ctx context.Context, resource string, query url.Values) (*Page, error) {
	path := "/api/" + resource + "/list"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var p Page
	if err := c.Do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns one record by id.
func (c *Client) Get(ctx context.Context, resource string, id int64) (map[string]any, error) {
	var out struct {
		Record map[string]any `json:"record"`
	}
	path := "/api/" + resource + "/get?id=" + strconv.FormatInt(id, 10)
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Record, nil
}

// Create inserts a record and returns its id.
func (c *Client) Create(ctx context.Context, resource string, fields map[string]any) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/"+resource+"/create", fields, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Update changes a record. With replace set the request is a PUT and
// every field is written. Otherwise it is a PATCH of the given fields.
func (c *Client) Update(ctx context.Context, resource string, id int64, fields map[string]any, replace bool) (map[string]any, error) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["id"] = id

	method := http.MethodPatch
	if replace {
		method = http.MethodPut
	}
	var out struct {
		Record map[string]any `json:"record"`
	}
	if err := c.Do(ctx, method, "/api/"+resource+"/update", body, &out); err != nil {
		return nil, err
	}
	return out.Record, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, resource string, id int64) error {
	path := "/api/" + resource + "/delete?id=" + strconv.FormatInt(id, 10)
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Restore brings back a soft-deleted record.
func (c *Client) Restore(ctx context.Context, resource string, id int64) error {
	return c.Do(ctx, http.MethodPost, "/api/"+resource+"/restore", map[string]any{"id": id}, nil)
}

// Settings returns the public site settings.
func (c *Client) Settings(ctx context.Context) (map[string]any, error) {
	var out struct {
		Settings map[string]any `json:"settings"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/settings/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Settings, nil
}

// UploadImage sends an image as the multipart field "image".
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (*Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	var out Upload
	if err := c.send(ctx, http.MethodPost, "/api/upload/image", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package endpoint

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/olegiv/province-cms/internal/apperror"
)

// Responder renders errors. Internal causes are exposed as "detail" only
// in development.
type Responder struct {
	Development bool
}

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes {"success":true, ...data}.
func WriteSuccess(w http.ResponseWriter, status int, data map[string]any) {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["success"] = true
	WriteJSON(w, status, data)
}

// Error writes {"error": msg} with the status of err's taxonomy type.
func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)

	if appErr.Code >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	body := map[string]any{"error": appErr.Message}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	if rs.Development && appErr.Internal != nil {
		body["detail"] = appErr.Internal.Error()
	}
	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	WriteJSON(w, appErr.Code, body)
}

// Handle adapts a route handler to net/http.
func (rs Responder) Handle(fn HandlerFunc, newContext func(http.ResponseWriter, *http.Request) *Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(newContext(w, r)); err != nil {
			rs.Error(w, r, err)
		}
	}
}

// NotFound answers unknown paths.
func (rs Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rs.Error(w, r, apperror.NotFound("Not found"))
}

// MethodNotAllowed answers known paths requested with another method.
func (rs Responder) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rs.Error(w, r, apperror.MethodNotAllowed())
}

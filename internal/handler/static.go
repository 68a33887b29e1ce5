// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/middleware"
)

// uploadsMaxAge is the browser cache lifetime of uploaded media.
const uploadsMaxAge = 7 * 24 * time.Hour

// UploadsHandler serves uploaded media below /uploads/. Directory
// listings are not served.
func UploadsHandler(dir string) http.Handler {
	files := http.FileServer(http.FS(filesOnly{os.DirFS(dir)}))
	return middleware.Immutable(uploadsMaxAge)(http.StripPrefix("/uploads/", files))
}

// filesOnly hides directories from http.FileServer.
type filesOnly struct {
	fsys fs.FS
}

func (f filesOnly) Open(name string) (fs.File, error) {
	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// SPAHandler serves the built single-page app from dir. Unknown paths
// outside /api get index.html so client-side routes survive a reload;
// unknown /api paths get the JSON 404.
func SPAHandler(dir string, responder endpoint.Responder) http.Handler {
	files := http.FileServer(http.FS(filesOnly{os.DirFS(dir)}))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIPath(r.URL.Path) {
			responder.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			responder.MethodNotAllowed(w, r)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" {
			if info, err := fs.Stat(os.DirFS(dir), name); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	})
}

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

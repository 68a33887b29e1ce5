// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/endpoint"
)

// multipartOverhead is the body allowance above the upload ceiling for
// multipart framing and the other form fields.
const multipartOverhead = 1 << 20

// uploadMemory is the part of a multipart form kept in memory.
const uploadMemory = 8 << 20

// imageField is the multipart field carrying the file.
const imageField = "image"

// UploadImage stores one image sent as multipart field "image".
func (h *Handler) UploadImage(c *endpoint.Context) error {
	if err := c.R.ParseMultipartForm(uploadMemory); err != nil {
		if endpoint.IsTooLarge(err) {
			return h.Uploads.TooLargeError()
		}
		return apperror.Validation("Expected a multipart form with an image field")
	}

	file, header, err := c.R.FormFile(imageField)
	if err != nil {
		return apperror.Validation("No file uploaded")
	}
	defer func() { _ = file.Close() }()

	if header.Size > h.Uploads.MaxBytes() {
		return h.Uploads.TooLargeError()
	}

	res, err := h.Uploads.Upload(c.Ctx(), file)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code < http.StatusInternalServerError {
			slog.WarnContext(c.Ctx(), "upload rejected", "filename", header.Filename, "size", header.Size, "error", appErr.Message)
		}
		return err
	}

	who, _ := c.Identity()
	slog.InfoContext(c.Ctx(), "image uploaded", "path", res.Path, "mime", res.MimeType, "size", res.Size)
	h.Audit.Record(c.Ctx(), c.R, actorOf(who), audit.Event{
		Action:   audit.ActionUpload,
		Resource: "uploads",
		Details:  map[string]any{"path": res.Path, "mime": res.MimeType, "size": res.Size},
	})
	return c.JSON(http.StatusCreated, map[string]any{
		"path":      res.Path,
		"thumbnail": res.Thumbnail,
		"mime":      res.MimeType,
		"size":      res.Size,
		"width":     res.Width,
		"height":    res.Height,
	})
}

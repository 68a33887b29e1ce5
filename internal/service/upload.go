// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/imaging"
)

// UploadService stores uploaded images.
type UploadService struct {
	processor *imaging.Processor
	maxBytes  int64
	now       func() time.Time
}

// NewUploadService creates an upload service writing below uploadDir.
func NewUploadService(uploadDir string, maxBytes int64, now func() time.Time) *UploadService {
	if now == nil {
		now = time.Now
	}
	return &UploadService{
		processor: imaging.NewProcessor(uploadDir, "/uploads"),
		maxBytes:  maxBytes,
		now:       now,
	}
}

// MaxBytes returns the upload size ceiling.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates and stores one image. The content type is sniffed from
// the data; the client-declared type is ignored.
func (s *UploadService) Upload(_ context.Context, r io.Reader) (*imaging.Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, s.TooLargeError()
	}
	if len(data) == 0 {
		return nil, apperror.Validation("No file uploaded")
	}

	res, err := s.processor.Process(bytes.NewReader(data), s.now())
	switch {
	case errors.Is(err, imaging.ErrUnsupportedType):
		return nil, apperror.Validation("Invalid file type. Allowed: JPEG, PNG, GIF, WebP")
	case errors.Is(err, imaging.ErrTooManyPixels):
		return nil, apperror.Validation("Image dimensions are too large")
	case err != nil:
		return nil, err
	}
	return res, nil
}

// TooLargeError is the error returned for uploads over the ceiling.
func (s *UploadService) TooLargeError() error {
	return apperror.TooLarge(fmt.Sprintf("File too large. Maximum size is %d MB", s.maxBytes>>20))
}

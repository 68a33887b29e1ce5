// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging stores uploaded images. JPEG and PNG uploads are
// decoded, auto-oriented from EXIF and re-encoded, which strips their
// metadata; GIF and WebP are stored as received. Every upload gets a
// thumbnail.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Supported MIME types.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// Processing limits.
const (
	ThumbnailWidth = 400
	jpegQuality    = 90
	maxPixels      = 50_000_000
)

// ErrUnsupportedType is returned for anything that is not a JPEG, PNG,
// GIF or WebP image.
var ErrUnsupportedType = errors.New("unsupported image type")

// ErrTooManyPixels is returned for images whose dimensions exceed the
// decoding limit.
var ErrTooManyPixels = errors.New("image dimensions too large")

// Result describes a stored upload. Paths are URL paths below /uploads.
type Result struct {
	Path      string `json:"path"`
	Thumbnail string `json:"thumbnail"`
	MimeType  string `json:"mime"`
	Size      int64  `json:"size"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Processor handles image processing operations using pure Go libraries.
type Processor struct {
	uploadDir string
	urlPrefix string
	newID     func() string
}

// NewProcessor creates a processor writing below uploadDir. Stored files
// are reported under urlPrefix, normally "/uploads".
func NewProcessor(uploadDir, urlPrefix string) *Processor {
	return &Processor{
		uploadDir: uploadDir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		newID:     uuid.NewString,
	}
}

// Process validates and stores an image uploaded at now. The file lands at
// images/YYYY/MM/<uuid>.<ext> with its thumbnail at thumbs/YYYY/MM/.
func (p *Processor) Process(r io.Reader, now time.Time) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	mime := DetectMimeType(data)
	format := mimeToFormat(mime)
	if format == "" {
		return nil, ErrUnsupportedType
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, ErrTooManyPixels
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	stored := data
	if format == "jpeg" || format == "png" {
		img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
		if stored, err = encodeImage(img, format); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
	}

	id := p.newID()
	month := now.UTC().Format("2006/01")

	origRel := path.Join("images", month, id+"."+format)
	if err := p.save(origRel, stored); err != nil {
		return nil, err
	}

	thumb := img
	if img.Bounds().Dx() > ThumbnailWidth {
		thumb = imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	}
	thumbFormat := format
	if thumbFormat == "webp" {
		thumbFormat = "jpeg"
	}
	thumbData, err := encodeImage(thumb, thumbFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	thumbRel := path.Join("thumbs", month, id+"."+thumbFormat)
	if err := p.save(thumbRel, thumbData); err != nil {
		_ = os.Remove(filepath.Join(p.uploadDir, filepath.FromSlash(origRel)))
		return nil, err
	}

	bounds := img.Bounds()
	return &Result{
		Path:      p.urlPrefix + "/" + origRel,
		Thumbnail: p.urlPrefix + "/" + thumbRel,
		MimeType:  mime,
		Size:      int64(len(stored)),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// DetectMimeType detects the MIME type of image data.
func DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// IsSupportedType reports whether mimeType can be uploaded.
func IsSupportedType(mimeType string) bool {
	return mimeToFormat(mimeType) != ""
}

// mimeToFormat maps a MIME type to its file extension. TIFF is never
// accepted (CVE-2023-36308 in disintegration/imaging).
func mimeToFormat(mimeType string) string {
	switch mimeType {
	case MimeTypeJPEG:
		return "jpeg"
	case MimeTypePNG:
		return "png"
	case MimeTypeGIF:
		return "gif"
	case MimeTypeWebP:
		return "webp"
	default:
		return ""
	}
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation applies an EXIF orientation (1-8) to img.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// save writes data to rel below the upload directory. rel is built from
// generated names only, but containment is still verified.
func (p *Processor) save(rel string, data []byte) error {
	absBase, err := filepath.Abs(p.uploadDir)
	if err != nil {
		return fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	target := filepath.Join(absBase, filepath.FromSlash(rel))
	if r, err := filepath.Rel(absBase, target); err != nil || strings.HasPrefix(r, "..") {
		return fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

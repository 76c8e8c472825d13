package storage

import (
	"context"
	"io"

	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
)

// Resource classes understood by the store.
const (
	ResourceRaw   = "raw"
	ResourceImage = "image"
)

// File describes an upload to be stored.
type File struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// Limits bounds accepted upload sizes per resource class.
type Limits struct {
	MaxImageBytes int64
	MaxPDFBytes   int64
}

// DocumentStore persists uploaded documents and returns a retrievable URL.
type DocumentStore interface {
	// Store validates nothing; call Classify first. Returns the public URL.
	Store(ctx context.Context, file File, folder, name string) (string, error)
	// Delete removes a stored document, best effort.
	Delete(ctx context.Context, rawURL string) bool
}

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Classify checks content type and size against the limits and returns the
// resource class ("raw" for PDFs, "image" otherwise) plus a file extension.
func Classify(contentType string, size int64, limits Limits) (resource, ext string, err error) {
	if contentType == "application/pdf" {
		if limits.MaxPDFBytes > 0 && size > limits.MaxPDFBytes {
			return "", "", appErrors.Clone(appErrors.ErrFileTooLarge, "PDF exceeds the maximum allowed size")
		}
		return ResourceRaw, ".pdf", nil
	}
	if e, ok := imageTypes[contentType]; ok {
		if limits.MaxImageBytes > 0 && size > limits.MaxImageBytes {
			return "", "", appErrors.Clone(appErrors.ErrFileTooLarge, "image exceeds the maximum allowed size")
		}
		return ResourceImage, e, nil
	}
	return "", "", appErrors.Clone(appErrors.ErrUnsupportedMedia, "file must be a PDF or a JPEG/PNG/WEBP image")
}

// ClassifyImage is Classify restricted to image uploads (photos, QR codes).
func ClassifyImage(contentType string, size int64, limits Limits) (string, error) {
	resource, ext, err := Classify(contentType, size, limits)
	if err != nil {
		return "", err
	}
	if resource != ResourceImage {
		return "", appErrors.Clone(appErrors.ErrUnsupportedMedia, "file must be a JPEG/PNG/WEBP image")
	}
	return ext, nil
}

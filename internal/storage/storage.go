// Package storage keeps paper PDFs on an S3-compatible media host.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPublicBaseURL is used when no public base URL is configured. It
// points at the API route that streams objects from the store.
const DefaultPublicBaseURL = "/api/media"

// ContentTypePDF is the only content type accepted for uploads.
const ContentTypePDF = "application/pdf"

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	ContentType  string
	Size         int64
	ETag         string
	LastModified time.Time
}

// MediaStore stores media objects and hands out retrievable URLs for them.
type MediaStore interface {
	// Put stores body under key and returns its public URL. size may be -1
	// when unknown.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	// Open streams the object stored under key. The caller closes the reader.
	// Returns domain.ErrNotFound if no such object exists.
	Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	// Stat describes the object stored under key without reading it.
	// Returns domain.ErrNotFound if no such object exists.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete removes the object stored under key. Deleting a missing object
	// is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of key.
	URL(key string) string
	// KeyFromURL returns the key of a URL handed out by this store.
	KeyFromURL(rawURL string) (string, bool)
}

// NewPaperKey returns a fresh object key for a PDF uploaded by userID.
func NewPaperKey(userID uuid.UUID) string {
	return fmt.Sprintf("papers/%s/%s.pdf", userID, uuid.New())
}

// OwnedBy reports whether key lies under userID's upload prefix.
func OwnedBy(key string, userID uuid.UUID) bool {
	return ValidKey(key) && strings.HasPrefix(key, fmt.Sprintf("papers/%s/", userID))
}

// ValidKey reports whether key is a relative, clean object key.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	return path.Clean(key) == key && !strings.HasPrefix(key, "../") && key != ".."
}

// Package storage keeps downloaded source documents and their metadata.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no document is stored under a name.
var ErrNotFound = errors.New("document not found")

// FileInfo contains metadata about a stored document
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	SHA256      string    `json:"sha256"`
	SourceURL   string    `json:"source_url,omitempty"`
	Path        string    `json:"path"` // absolute path on disk
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the document store operations
type Storage interface {
	// Put stores r under name, replacing any previous copy only once the
	// new content has been fully written.
	Put(ctx context.Context, name, contentType, sourceURL string, r io.Reader) (*FileInfo, error)

	// Stat returns metadata for a stored document.
	Stat(ctx context.Context, name string) (*FileInfo, error)
}

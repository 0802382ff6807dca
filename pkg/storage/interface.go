package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Storage defines the object store used for avatars and chat attachments.
type Storage interface {
	// Write stores content from the reader under key.
	// size is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for key. The caller closes the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL clients can fetch the object from.
	// For S3 without a public URL this is presigned for expires.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

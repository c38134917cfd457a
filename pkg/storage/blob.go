package storage

import (
	"context"
	"fmt"
	"io"
)

// BlobStore holds plugin artifacts and logos. Put returns an opaque
// reference the engine persists verbatim; the engine never interprets it.
type BlobStore interface {
	// Put stores the content under the given folder ("logos" or
	// "artifacts") and returns the reference for later retrieval.
	Put(ctx context.Context, folder, filename, contentType string, content io.Reader) (ref string, err error)

	// Get opens the content behind a reference previously returned by Put.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the content behind a reference. Deleting an unknown
	// reference is not an error.
	Delete(ctx context.Context, ref string) error
}

// NewBlobStore builds the configured blob store backend
func NewBlobStore(cfg Config) (BlobStore, error) {
	switch cfg.BlobBackend {
	case "filesystem":
		return NewFilesystemBlobStore(cfg.BlobRoot)
	case "s3":
		return NewS3BlobStore(cfg)
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.BlobBackend)
	}
}

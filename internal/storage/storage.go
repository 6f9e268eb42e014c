// Package storage keeps named blobs (uploaded avatars) outside the
// database.
//
// BACKENDS:
//   - Local: files under a base directory. The default; no setup needed.
//   - S3: any S3-compatible bucket (AWS, MinIO).
//
// Keys are slash-separated relative paths such as "pics/<name>.png".
// Both backends report a missing key as apperror.ErrNotFound.
package storage

import (
	"context"
	"io"
)

// Store is the blob contract the services depend on.
type Store interface {
	// Put stores r under key, replacing any previous blob. size is the
	// content length, or -1 if unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Open returns the blob's content. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a key that does not exist is not an error.
	Delete(ctx context.Context, key string) error
}

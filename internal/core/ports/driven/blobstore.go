package driven

import (
	"context"
	"io"
)

// BlobStore is a content-addressable store for raw and derived bytes.
// Keys are lowercase hex SHA-256 digests (see domain.ContentKey).
type BlobStore interface {
	// Put stores data and returns its key. Writing identical bytes twice
	// is a no-op that returns the same key.
	Put(ctx context.Context, data []byte) (string, error)

	// Get opens the blob for reading.
	// Returns domain.ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob. Absent keys are not an error.
	// Callers must check that no row still references the key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Size returns the blob length in bytes.
	// Returns domain.ErrNotFound if the key is absent.
	Size(ctx context.Context, key string) (int64, error)

	// Close releases resources.
	Close() error
}

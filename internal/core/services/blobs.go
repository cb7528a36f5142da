package services

import (
	"context"
	"fmt"
	"io"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// readBlob loads a whole blob.
func readBlob(ctx context.Context, blobs driven.BlobStore, key string) ([]byte, error) {
	rc, err := blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// releaseBlobs deletes each key no document references any more.
// Failures are logged; a leaked blob is harmless.
func releaseBlobs(ctx context.Context, docs driven.DocumentStore, blobs driven.BlobStore, keys ...string) {
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		n, err := docs.CountBlobReferences(ctx, key)
		if err != nil {
			logger.Warn("count references to blob %s: %v", key, err)
			continue
		}
		if n > 0 {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			logger.Warn("delete blob %s: %v", key, err)
		}
	}
}

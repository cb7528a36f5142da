package driving

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// IngestService accepts new documents and removes old ones.
type IngestService interface {
	// SubmitURL registers a URL for download and enqueues it.
	// Returns domain.ErrAlreadyExists for a known URL.
	SubmitURL(ctx context.Context, principal, url string, collections []string) (*domain.Document, error)

	// SubmitURLs registers many URLs at once. Known URLs are skipped.
	SubmitURLs(ctx context.Context, principal string, urls []string, collections []string) ([]domain.Document, error)

	// SubmitFile stores uploaded bytes under url and enqueues extraction.
	// An empty mimeType is sniffed from the content.
	SubmitFile(ctx context.Context, principal, url string, content []byte, mimeType string, collections []string) (*domain.Document, error)

	// DeleteDocument removes a document unless it is in use.
	DeleteDocument(ctx context.Context, principal string, docID int64) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, docID int64) (*domain.Document, error)
}

package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// DocumentService inspects and re-runs stored documents.
type DocumentService interface {
	// List pages through documents in ascending ID order.
	List(ctx context.Context, opts driven.ListOptions) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, docID int64) (*domain.Document, error)

	// GetContent returns the derived text of an extracted document.
	GetContent(ctx context.Context, docID int64) (string, error)

	// GetDetails returns the document with its class and fragment count.
	GetDetails(ctx context.Context, docID int64) (*DocumentDetails, error)

	// Refresh enqueues a new download. With reparse the text is
	// extracted again even when the content is unchanged.
	Refresh(ctx context.Context, docID int64, reparse bool) error

	// Reparse enqueues extraction of the stored content.
	Reparse(ctx context.Context, docID int64) error

	// Open opens the document in the default application.
	Open(ctx context.Context, docID int64) error
}

// DocumentDetails provides a display view of a document.
type DocumentDetails struct {
	// Document is the stored row.
	Document domain.Document

	// State is the derived pipeline state.
	State domain.DocumentState

	// CanonicalURI is the root of the document's URI class.
	CanonicalURI string

	// Equivalents are the other members of the class.
	Equivalents []domain.URI

	// FragmentCount is the number of extracted fragments.
	FragmentCount int

	// Retrieved is when the content was fetched. Zero if never.
	Retrieved time.Time

	// Metadata contains flattened key-value pairs for display.
	Metadata map[string]string
}

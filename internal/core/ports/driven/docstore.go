package driven

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// DocumentStore persists documents, fragments and analyzers.
// Backed by SQLite. Multi-row mutations run in one transaction.
type DocumentStore interface {
	// CreateDocument inserts a document and sets its ID.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// UpdateDocument writes every mutable field of an existing document.
	UpdateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// FindByURI returns the document attached to any member of the class
	// containing the given URI ID. Returns domain.ErrNotFound if none.
	FindByURI(ctx context.Context, uriID int64) (*domain.Document, error)

	// FindByFileIdentity returns the oldest other document with the same
	// raw content key. Returns domain.ErrNotFound if none.
	FindByFileIdentity(ctx context.Context, key string, excludeID int64) (*domain.Document, error)

	// ListDocuments pages through documents in ID order.
	ListDocuments(ctx context.Context, opts ListOptions) ([]domain.Document, error)

	// ResetContent removes the fragments and embeddings of a document and
	// clears its text identity. One transaction.
	ResetContent(ctx context.Context, docID int64) error

	// ReplaceFragments swaps the fragments of a document and records the
	// new derived text on it. One transaction. The returned fragments
	// carry their assigned IDs.
	ReplaceFragments(ctx context.Context, update ExtractionUpdate) ([]domain.Fragment, error)

	// DiscardDuplicate merges the URI class of a document into intoURIID's
	// class and deletes the document. One transaction.
	DiscardDuplicate(ctx context.Context, docID, intoURIID int64) error

	// DeleteDocument removes a document with its fragments and embeddings.
	// The document's URI row is removed too when it is a class root with
	// no other members and no documents. One transaction.
	DeleteDocument(ctx context.Context, id int64) error

	// InUse reports whether fragments of the document are referenced by
	// analyses or cited as generation sources by other fragments.
	InUse(ctx context.Context, docID int64) (bool, error)

	// CountBlobReferences counts documents whose file or text identity is key.
	CountBlobReferences(ctx context.Context, key string) (int, error)

	// CreateFragment inserts a standalone fragment and sets its ID.
	CreateFragment(ctx context.Context, f *domain.Fragment) error

	// GetFragment retrieves a fragment by ID.
	GetFragment(ctx context.Context, id int64) (*domain.Fragment, error)

	// GetFragments returns the fragments of a document in position order.
	GetFragments(ctx context.Context, docID int64) ([]domain.Fragment, error)

	// GetFragmentsByIDs returns the fragments that exist among ids, keyed by ID.
	GetFragmentsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Fragment, error)

	// CountFragments returns the number of fragments of a document.
	CountFragments(ctx context.Context, docID int64) (int, error)

	// ListFragments pages through fragments in ID order.
	ListFragments(ctx context.Context, opts ListOptions) ([]domain.Fragment, error)
}

// ListOptions pages through rows in ascending ID order.
type ListOptions struct {
	// AfterID returns rows with a larger ID.
	AfterID int64

	// Limit bounds the page size. Zero means the store default.
	Limit int

	// Collection restricts rows to one collection.
	Collection string

	// Scales restricts fragments to these types. Ignored for documents.
	Scales []domain.FragmentType

	// WithText restricts documents to those with derived text.
	WithText bool
}

// ExtractionUpdate carries the result of one extraction.
type ExtractionUpdate struct {
	DocID          int64
	Fragments      []domain.Fragment
	TextIdentity   string
	TextSize       int64
	TextAnalyzerID int64
	Language       string
	Title          string
	ProcessParams  map[string]any
}

// AnalyzerStore is the append-only registry of processing steps.
type AnalyzerStore interface {
	// EnsureAnalyzer returns the ID of the analyzer with the same name,
	// version and params, creating it if needed.
	EnsureAnalyzer(ctx context.Context, a domain.Analyzer) (int64, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// VectorStore persists embeddings and serves nearest-neighbour candidates.
// Backed by SQLite (brute force) or PostgreSQL with pgvector.
type VectorStore interface {
	// Save stores the embedding, replacing any row for the same
	// (model, target).
	Save(ctx context.Context, e domain.Embedding) error

	// Get retrieves the embedding of a target.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, model string, target domain.EmbeddingTarget) (*domain.Embedding, error)

	// Exists reports whether an embedding exists for (model, target).
	Exists(ctx context.Context, model string, target domain.EmbeddingTarget) (bool, error)

	// Nearest returns up to k fragment candidates matching filter, sorted
	// by ascending cosine distance to query then fragment ID. k <= 0
	// returns every candidate.
	Nearest(ctx context.Context, model string, query []float32, filter domain.SearchFilter, k int) ([]domain.Candidate, error)

	// DeleteDocument removes the embeddings of a document and its fragments.
	DeleteDocument(ctx context.Context, docID int64) error

	// Close releases resources.
	Close() error
}

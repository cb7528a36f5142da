package driving

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search ranks fragments against a text or an existing fragment.
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error)
}

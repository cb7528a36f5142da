package driving

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// URIResolver manages URI equivalence classes.
type URIResolver interface {
	// AddURLs creates the http(s) URLs that are not stored yet.
	AddURLs(ctx context.Context, urls []string, equivalences map[string]int64) (created, existing []domain.URI, err error)

	// AddVariant adds a URL to the class of an existing member.
	AddVariant(ctx context.Context, uri string, existingID int64, status domain.URIStatus) (*domain.URI, error)

	// Merge joins two classes.
	Merge(ctx context.Context, intoID, fromID int64) error

	// Promote makes a member the canonical root of its class.
	Promote(ctx context.Context, uriID int64) error

	// Class returns the root and all members of a member's class.
	Class(ctx context.Context, uriID int64) (*domain.URI, []domain.URI, error)

	// Lookup finds a member by URL, normalizing it first.
	Lookup(ctx context.Context, url string) (*domain.URI, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// URIStore persists URI equivalence classes.
// Every method that touches more than one row runs in one transaction so
// readers never observe a member pointing at a vanished root.
type URIStore interface {
	// GetURI retrieves a member by ID.
	GetURI(ctx context.Context, id int64) (*domain.URI, error)

	// GetURIByString retrieves a member by its normalized string.
	GetURIByString(ctx context.Context, uri string) (*domain.URI, error)

	// AddURLs creates the given normalized URLs. URLs already stored are
	// returned as existing. A URL present in snapshotOf is created as a
	// snapshot pointing at the root of the mapped member's class; the
	// rest are created as canonical roots.
	AddURLs(ctx context.Context, urls []string, snapshotOf map[string]int64) (created, existing []domain.URI, err error)

	// AddVariant creates uri in the class of existingID. A canonical status
	// makes the new row the root and merges the old class into it; other
	// statuses point the new row at the existing root.
	AddVariant(ctx context.Context, uri string, existingID int64, status domain.URIStatus) (*domain.URI, error)

	// Merge joins the class of fromID into the class of intoID and returns
	// the surviving root ID. A canonical from-root becomes alt.
	Merge(ctx context.Context, intoID, fromID int64) (int64, error)

	// Promote makes a member the canonical root of its class.
	Promote(ctx context.Context, id int64) error

	// Members returns the root and every member of the class of id,
	// root first.
	Members(ctx context.Context, id int64) ([]domain.URI, error)
}

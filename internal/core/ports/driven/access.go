package driven

import "context"

// Actions checked through the Authorizer.
const (
	ActionAddDocument    = "add_document"
	ActionDeleteDocument = "delete_document"
	ActionEditURI        = "edit_uri"
)

// Authorizer decides whether a principal may act on a collection.
// An empty collection means the global scope.
type Authorizer interface {
	Can(ctx context.Context, principal, action, collection string) (bool, error)
}

// CollectionResolver answers questions about named collections.
type CollectionResolver interface {
	// Exists reports whether the collection is known.
	Exists(ctx context.Context, name string) (bool, error)

	// Models returns the extra embedding models configured for the collection.
	Models(ctx context.Context, name string) ([]string, error)
}

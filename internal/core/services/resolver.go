package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Ensure Resolver implements the interface.
var _ driving.URIResolver = (*Resolver)(nil)

// Resolver manages URI equivalence classes. It normalizes input and
// decides statuses; the store applies every change in one transaction.
type Resolver struct {
	uris   driven.URIStore
	policy domain.VariantPolicy
}

// NewResolver creates a resolver. An invalid policy falls back to defer.
func NewResolver(uris driven.URIStore, policy domain.VariantPolicy) *Resolver {
	if !policy.IsValid() {
		policy = domain.VariantPolicyDefer
	}
	return &Resolver{uris: uris, policy: policy}
}

// AddURLs normalizes and deduplicates the http(s) inputs, then creates the
// ones not stored yet. Inputs that are keys of equivalences become
// snapshots in the class of the mapped member.
func (r *Resolver) AddURLs(
	ctx context.Context, urls []string, equivalences map[string]int64,
) (created, existing []domain.URI, err error) {
	seen := make(map[string]bool, len(urls))
	normalized := make([]string, 0, len(urls))
	snapshotOf := make(map[string]int64)

	for _, raw := range urls {
		if !domain.IsHTTPURL(raw) {
			logger.Debug("Skipping non-http URL %q", raw)
			continue
		}
		u, err := domain.NormalizeURL(raw)
		if err != nil {
			logger.Warn("Skipping invalid URL %q: %v", raw, err)
			continue
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		normalized = append(normalized, u)

		if id, ok := equivalences[raw]; ok {
			snapshotOf[u] = id
		} else if id, ok := equivalences[u]; ok {
			snapshotOf[u] = id
		}
	}

	if len(normalized) == 0 {
		return nil, nil, nil
	}

	created, existing, err = r.uris.AddURLs(ctx, normalized, snapshotOf)
	if err != nil {
		return nil, nil, fmt.Errorf("add urls: %w", err)
	}
	return created, existing, nil
}

// AddURI stores a single URI of any scheme as the root of a new class, or
// returns the existing member. Non-http identifiers become urn roots so that
// a URL found later takes over as canonical. The boolean reports whether the
// row was created.
func (r *Resolver) AddURI(ctx context.Context, raw string) (*domain.URI, bool, error) {
	u, err := domain.NormalizeURL(raw)
	if err != nil {
		return nil, false, err
	}

	created, existing, err := r.uris.AddURLs(ctx, []string{u}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("add uri: %w", err)
	}
	if len(created) == 1 {
		return &created[0], true, nil
	}
	if len(existing) == 1 {
		return &existing[0], false, nil
	}
	return nil, false, fmt.Errorf("add uri %s: no row returned", u)
}

// AddVariant adds uri to the class of existingID.
//
// An unknown status is resolved first: a class rooted at a URN gets the
// new URL as its canonical member; otherwise the variant policy decides
// between alt (defer) and canonical (prefer_new).
func (r *Resolver) AddVariant(
	ctx context.Context, uri string, existingID int64, status domain.URIStatus,
) (*domain.URI, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown uri status %q", domain.ErrInvalidInput, status)
	}
	u, err := domain.NormalizeURL(uri)
	if err != nil {
		return nil, err
	}

	if status == domain.URIStatusUnknown {
		status, err = r.resolveUnknown(ctx, existingID)
		if err != nil {
			return nil, err
		}
	}

	added, err := r.uris.AddVariant(ctx, u, existingID, status)
	if err != nil {
		return nil, fmt.Errorf("add variant: %w", err)
	}
	logger.Debug("Added %s as %s variant of uri %d", u, status, existingID)
	return added, nil
}

func (r *Resolver) resolveUnknown(ctx context.Context, existingID int64) (domain.URIStatus, error) {
	existing, err := r.uris.GetURI(ctx, existingID)
	if err != nil {
		return "", fmt.Errorf("get uri %d: %w", existingID, err)
	}
	root := existing
	if !existing.IsRoot() {
		root, err = r.uris.GetURI(ctx, existing.RootID())
		if err != nil {
			return "", fmt.Errorf("get root uri %d: %w", existing.RootID(), err)
		}
	}

	if root.Status == domain.URIStatusURN || r.policy == domain.VariantPolicyPreferNew {
		return domain.URIStatusCanonical, nil
	}
	return domain.URIStatusAlt, nil
}

// Merge joins the class of fromID into the class of intoID.
func (r *Resolver) Merge(ctx context.Context, intoID, fromID int64) error {
	rootID, err := r.uris.Merge(ctx, intoID, fromID)
	if err != nil {
		return fmt.Errorf("merge uri %d into %d: %w", fromID, intoID, err)
	}
	logger.Debug("Merged uri %d into class %d", fromID, rootID)
	return nil
}

// Promote makes a member the canonical root of its class.
func (r *Resolver) Promote(ctx context.Context, uriID int64) error {
	if err := r.uris.Promote(ctx, uriID); err != nil {
		return fmt.Errorf("promote uri %d: %w", uriID, err)
	}
	return nil
}

// Class returns the root of a member's class and its other members.
func (r *Resolver) Class(ctx context.Context, uriID int64) (*domain.URI, []domain.URI, error) {
	members, err := r.uris.Members(ctx, uriID)
	if err != nil {
		return nil, nil, fmt.Errorf("class of uri %d: %w", uriID, err)
	}
	if len(members) == 0 {
		return nil, nil, fmt.Errorf("class of uri %d: %w", uriID, domain.ErrNotFound)
	}
	root := members[0]
	return &root, members[1:], nil
}

// Lookup finds a member by URL, normalizing it first.
func (r *Resolver) Lookup(ctx context.Context, url string) (*domain.URI, error) {
	u, err := domain.NormalizeURL(url)
	if err != nil {
		return nil, err
	}
	found, err := r.uris.GetURIByString(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", u, err)
	}
	return found, nil
}

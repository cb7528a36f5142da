package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// ModelRegistry maps model names to embedding services.
// The base model embeds every fragment and document; collections may
// name extra models through the CollectionResolver.
type ModelRegistry struct {
	base        string
	models      map[string]driven.EmbeddingService
	collections driven.CollectionResolver
}

// NewModelRegistry creates a registry. collections may be nil.
func NewModelRegistry(base string, collections driven.CollectionResolver) *ModelRegistry {
	return &ModelRegistry{
		base:        base,
		models:      make(map[string]driven.EmbeddingService),
		collections: collections,
	}
}

// Register adds or replaces a model.
func (r *ModelRegistry) Register(name string, svc driven.EmbeddingService) {
	r.models[name] = svc
}

// Base returns the base model name.
func (r *ModelRegistry) Base() string {
	return r.base
}

// Resolve maps an empty name to the base model.
func (r *ModelRegistry) Resolve(name string) string {
	if name == "" {
		return r.base
	}
	return name
}

// Get returns the service for a model. An empty name means the base model.
func (r *ModelRegistry) Get(name string) (driven.EmbeddingService, error) {
	name = r.Resolve(name)
	svc, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: model %q", domain.ErrEmbeddingUnavailable, name)
	}
	return svc, nil
}

// Names returns the registered model names in order.
func (r *ModelRegistry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExtraModels returns the registered non-base models configured for any
// of the collections, without duplicates, in collection order.
func (r *ModelRegistry) ExtraModels(ctx context.Context, collections []string) ([]string, error) {
	if r.collections == nil {
		return nil, nil
	}

	var extras []string
	seen := map[string]bool{r.base: true}
	for _, c := range collections {
		models, err := r.collections.Models(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("models of collection %s: %w", c, err)
		}
		for _, m := range models {
			if seen[m] {
				continue
			}
			seen[m] = true
			if _, ok := r.models[m]; ok {
				extras = append(extras, m)
			}
		}
	}
	return extras, nil
}

// ModelFor returns the first extra model configured for the collections,
// or the base model.
func (r *ModelRegistry) ModelFor(ctx context.Context, collections []string) string {
	extras, err := r.ExtraModels(ctx, collections)
	if err != nil || len(extras) == 0 {
		return r.base
	}
	return extras[0]
}

// Close releases every registered service.
func (r *ModelRegistry) Close() error {
	var errs []error
	for name, svc := range r.models {
		if err := svc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close model %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

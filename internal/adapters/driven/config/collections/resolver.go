// Package collections resolves named collections from configuration.
//
// A collection exists when any key below collections.<name> is set:
//
//	[collections.climate]
//	embeddings = ["ada2"]
//	description = "Climate policy sources"
package collections

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

const prefix = "collections."

// Ensure Resolver implements the CollectionResolver interface.
var _ driven.CollectionResolver = (*Resolver)(nil)

// Resolver reads collections from a ConfigStore on every call, so edits
// made through the settings service apply without a restart.
type Resolver struct {
	config driven.ConfigStore
}

// NewResolver creates a config-backed collection resolver.
func NewResolver(config driven.ConfigStore) *Resolver {
	return &Resolver{config: config}
}

// Exists reports whether the collection has any configuration.
func (r *Resolver) Exists(_ context.Context, name string) (bool, error) {
	if name == "" || strings.Contains(name, ".") {
		return false, nil
	}
	return len(r.config.Keys(prefix+name+".")) > 0, nil
}

// Models returns the extra embedding models for the collection.
func (r *Resolver) Models(_ context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, nil
	}
	return r.config.GetStringSlice(prefix + name + ".embeddings"), nil
}

// Names returns every configured collection, sorted.
func (r *Resolver) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, key := range r.config.Keys(prefix) {
		name, _, _ := strings.Cut(strings.TrimPrefix(key, prefix), ".")
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

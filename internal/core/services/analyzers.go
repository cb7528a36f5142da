package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// AnalyzerCache resolves analyzer IDs, remembering them for the life of
// the process. Analyzer rows are append-only, so entries never go stale.
type AnalyzerCache struct {
	store driven.AnalyzerStore

	mu  sync.Mutex
	ids map[string]int64
}

// NewAnalyzerCache creates an empty cache over store.
func NewAnalyzerCache(store driven.AnalyzerStore) *AnalyzerCache {
	return &AnalyzerCache{
		store: store,
		ids:   make(map[string]int64),
	}
}

// ID returns the ID of the analyzer, registering it on first use.
func (c *AnalyzerCache) ID(ctx context.Context, a domain.Analyzer) (int64, error) {
	key := a.Key()

	c.mu.Lock()
	id, ok := c.ids[key]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := c.store.EnsureAnalyzer(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("ensure analyzer %s: %w", a.Name, err)
	}

	c.mu.Lock()
	c.ids[key] = id
	c.mu.Unlock()
	return id, nil
}

// Package memory provides an in-process BlobStore for tests and
// ephemeral runs.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Store keeps blobs in a map.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Put stores a copy of data.
func (s *Store) Put(_ context.Context, data []byte) (string, error) {
	key := domain.ContentKey(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		s.blobs[key] = append([]byte(nil), data...)
	}
	return key, nil
}

// Get returns a reader over the stored bytes.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if !domain.ValidContentKey(key) {
		return nil, domain.ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob.
func (s *Store) Delete(_ context.Context, key string) error {
	if !domain.ValidContentKey(key) {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Exists reports whether the key is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	if !domain.ValidContentKey(key) {
		return false, domain.ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok, nil
}

// Size returns the blob length.
func (s *Store) Size(_ context.Context, key string) (int64, error) {
	if !domain.ValidContentKey(key) {
		return 0, domain.ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return int64(len(data)), nil
}

// Len returns the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

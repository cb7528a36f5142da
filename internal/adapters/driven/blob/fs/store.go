// Package fs stores blobs as files under a sharded directory tree:
// <root>/ab/cd/abcd....
package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Store is a filesystem-backed BlobStore.
type Store struct {
	root string
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, key[0:2], key[2:4], key)
}

// Put writes data if its key is absent. The write goes to a temp file in
// the target directory and is renamed into place.
func (s *Store) Put(_ context.Context, data []byte) (string, error) {
	key := domain.ContentKey(data)
	target := s.path(key)

	if _, err := os.Stat(target); err == nil {
		return key, nil
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("committing blob: %w", err)
	}
	return key, nil
}

// Get opens the blob file.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if !domain.ValidContentKey(key) {
		return nil, domain.ErrInvalidInput
	}
	f, err := os.Open(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob file.
func (s *Store) Delete(_ context.Context, key string) error {
	if !domain.ValidContentKey(key) {
		return domain.ErrInvalidInput
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// Exists reports whether the blob file exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Size(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Size returns the blob file size.
func (s *Store) Size(_ context.Context, key string) (int64, error) {
	if !domain.ValidContentKey(key) {
		return 0, domain.ErrInvalidInput
	}
	info, err := os.Stat(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("stat blob: %w", err)
	}
	return info.Size(), nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

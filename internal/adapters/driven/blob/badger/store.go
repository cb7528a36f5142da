// Package badger provides a BadgerDB implementation of driven.BlobStore.
// Each blob is one key, prefixed to leave room for other keyspaces.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

const keyPrefix = "blob/"

// Store implements driven.BlobStore using BadgerDB.
type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) a Badger database at path.
func NewStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &Store{db: db}, nil
}

// NewInMemoryStore opens a Badger database that lives only in memory.
func NewInMemoryStore() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &Store{db: db}, nil
}

func dbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// Put stores data if its key is absent. The existence check runs in a
// read transaction so concurrent writers of the same blob never conflict.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	key := domain.ContentKey(data)
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		return key, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), data)
	})
	if err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	return key, nil
}

// Get copies the value out of the transaction and returns a reader over it.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if !domain.ValidContentKey(key) {
		return nil, domain.ErrInvalidInput
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob.
func (s *Store) Delete(_ context.Context, key string) error {
	if !domain.ValidContentKey(key) {
		return domain.ErrInvalidInput
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// Exists reports whether the key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Size(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Size returns the stored value size.
func (s *Store) Size(_ context.Context, key string) (int64, error) {
	if !domain.ValidContentKey(key) {
		return 0, domain.ErrInvalidInput
	}
	var size int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		size = item.ValueSize()
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("sizing blob: %w", err)
	}
	return size, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package blobtest provides a conformance suite for driven.BlobStore
// implementations.
package blobtest

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Run exercises store against the BlobStore contract.
func Run(t *testing.T, store driven.BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("put is idempotent", func(t *testing.T) {
		data := []byte("the same bytes twice")

		k1, err := store.Put(ctx, data)
		require.NoError(t, err)
		k2, err := store.Put(ctx, data)
		require.NoError(t, err)

		assert.Equal(t, k1, k2)
		assert.Equal(t, domain.ContentKey(data), k1)
	})

	t.Run("get returns stored bytes", func(t *testing.T) {
		data := []byte("<html><p>hello</p></html>")
		key, err := store.Put(ctx, data)
		require.NoError(t, err)

		rc, err := store.Get(ctx, key)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, data, got)

		size, err := store.Size(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), size)
	})

	t.Run("missing key", func(t *testing.T) {
		key := domain.ContentKey([]byte("never stored"))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.Size(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		key, err := store.Put(ctx, []byte("to be deleted"))
		require.NoError(t, err)

		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, store.Delete(ctx, key))
		require.NoError(t, store.Delete(ctx, key), "deleting an absent key is not an error")

		ok, err = store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := store.Get(ctx, "../../etc/passwd")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.ErrorIs(t, store.Delete(ctx, "XYZ"), domain.ErrInvalidInput)
	})

	t.Run("empty blob", func(t *testing.T) {
		key, err := store.Put(ctx, nil)
		require.NoError(t, err)

		size, err := store.Size(ctx, key)
		require.NoError(t, err)
		assert.Zero(t, size)
	})

	t.Run("concurrent puts", func(t *testing.T) {
		data := []byte("raced content")
		var wg sync.WaitGroup
		keys := make([]string, 8)
		for i := range keys {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				k, err := store.Put(ctx, data)
				assert.NoError(t, err)
				keys[i] = k
			}(i)
		}
		wg.Wait()

		for _, k := range keys {
			assert.Equal(t, domain.ContentKey(data), k)
		}
	})
}

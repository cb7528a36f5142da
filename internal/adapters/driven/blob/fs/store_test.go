package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/adapters/driven/blob/blobtest"
)

func TestStore_Conformance(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	blobtest.Run(t, store)
}

func TestStore_ShardedLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	key, err := store.Put(context.Background(), []byte("hello"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, key[:2], key[2:4], key))
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, key[:2], key[2:4]))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStore_StableAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first, err := New(dir)
	require.NoError(t, err)
	key, err := first.Put(context.Background(), []byte("persisted"))
	require.NoError(t, err)

	second, err := New(dir)
	require.NoError(t, err)
	ok, err := second.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
}

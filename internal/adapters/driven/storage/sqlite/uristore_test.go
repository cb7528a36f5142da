package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// assertClassInvariant checks that every member points directly at a root.
func assertClassInvariant(t *testing.T, store *Store) {
	t.Helper()
	var bad int
	err := store.db.QueryRow(`
		SELECT COUNT(*) FROM uri_equiv m
		JOIN uri_equiv r ON r.id = m.canonical_id
		WHERE r.canonical_id IS NOT NULL
	`).Scan(&bad)
	require.NoError(t, err)
	assert.Zero(t, bad, "members must point at a class root")
}

func TestURIStore_AddURLs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	uris := store.URIStore()

	created, existing, err := uris.AddURLs(ctx, []string{"https://a.example/", "https://b.example/"}, nil)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Empty(t, existing)
	for _, u := range created {
		assert.True(t, u.IsRoot())
		assert.Equal(t, domain.URIStatusCanonical, u.Status)
	}

	created, existing, err = uris.AddURLs(ctx, []string{"https://a.example/", "https://c.example/"}, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Len(t, existing, 1)
	assert.Equal(t, "https://c.example/", created[0].URI)
	assert.Equal(t, "https://a.example/", existing[0].URI)
}

func TestURIStore_AddURLs_URNRoot(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	uris := store.URIStore()

	created, _, err := uris.AddURLs(ctx, []string{"urn:isbn:9780000000001"}, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	urn := created[0]
	assert.True(t, urn.IsRoot())
	assert.Equal(t, domain.URIStatusURN, urn.Status)

	added, err := uris.AddVariant(ctx, "https://books.example/title", urn.ID, domain.URIStatusCanonical)
	require.NoError(t, err)
	assert.True(t, added.IsRoot())

	got, err := uris.GetURI(ctx, urn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.URIStatusURN, got.Status)
	require.NotNil(t, got.CanonicalID)
	assert.Equal(t, added.ID, *got.CanonicalID)
	assertClassInvariant(t, store)
}

func TestURIStore_AddURLs_Snapshot(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	live := createTestURI(t, store, "https://a.example/page")
	archive := domain.ArchivedURL(live.URI)

	created, _, err := store.URIStore().AddURLs(ctx, []string{archive},
		map[string]int64{archive: live.ID})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, domain.URIStatusSnapshot, created[0].Status)
	require.NotNil(t, created[0].CanonicalID)
	assert.Equal(t, live.ID, *created[0].CanonicalID)
}

func TestURIStore_GetURIByString_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.URIStore().GetURIByString(context.Background(), "https://missing.example/")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestURIStore_AddVariant(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	uris := store.URIStore()
	root := createTestURI(t, store, "https://a.example/")

	t.Run("unknown joins class", func(t *testing.T) {
		v, err := uris.AddVariant(ctx, "https://a.example/?ref=1", root.ID, domain.URIStatusUnknown)
		require.NoError(t, err)
		require.NotNil(t, v.CanonicalID)
		assert.Equal(t, root.ID, *v.CanonicalID)
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		_, err := uris.AddVariant(ctx, "https://a.example/?ref=1", root.ID, domain.URIStatusAlt)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("canonical takes over", func(t *testing.T) {
		v, err := uris.AddVariant(ctx, "https://www.a.example/", root.ID, domain.URIStatusCanonical)
		require.NoError(t, err)
		assert.True(t, v.IsRoot())

		members, err := uris.Members(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, v.ID, members[0].ID)
		for _, m := range members[1:] {
			assert.NotEqual(t, domain.URIStatusCanonical, m.Status)
		}
	})

	assertClassInvariant(t, store)
}

func TestURIStore_Merge(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	uris := store.URIStore()

	a := createTestURI(t, store, "https://a.example/")
	b := createTestURI(t, store, "https://b.example/")
	bAlt, err := uris.AddVariant(ctx, "https://b.example/alt", b.ID, domain.URIStatusAlt)
	require.NoError(t, err)

	root, err := uris.Merge(ctx, a.ID, bAlt.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, root)

	members, err := uris.Members(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3)
	assert.Equal(t, a.ID, members[0].ID)

	gotB, err := uris.GetURI(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.URIStatusAlt, gotB.Status)

	again, err := uris.Merge(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, again)

	assertClassInvariant(t, store)
}

func TestURIStore_Promote(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	uris := store.URIStore()

	root := createTestURI(t, store, "https://a.example/")
	m1, err := uris.AddVariant(ctx, "https://a.example/1", root.ID, domain.URIStatusUnknown)
	require.NoError(t, err)
	m2, err := uris.AddVariant(ctx, "https://a.example/2", root.ID, domain.URIStatusAlt)
	require.NoError(t, err)

	require.NoError(t, uris.Promote(ctx, m1.ID))

	members, err := uris.Members(ctx, m2.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, m1.ID, members[0].ID)
	assert.Equal(t, domain.URIStatusCanonical, members[0].Status)

	oldRoot, err := uris.GetURI(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.URIStatusAlt, oldRoot.Status)
	require.NotNil(t, oldRoot.CanonicalID)
	assert.Equal(t, m1.ID, *oldRoot.CanonicalID)

	require.NoError(t, uris.Promote(ctx, m1.ID))
	assertClassInvariant(t, store)
}

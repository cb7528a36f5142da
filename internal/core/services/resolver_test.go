package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

func TestResolver_AddURLs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, existing, err := env.resolver.AddURLs(ctx, []string{
		"https://Example.com/a/",
		"https://example.com/a",
		"urn:isbn:9780262033848",
		"not a url",
		"http://example.com:80/b?utm_medium=feed",
	}, nil)

	require.NoError(t, err)
	assert.Empty(t, existing)
	require.Len(t, created, 2)
	assert.Equal(t, "https://example.com/a", created[0].URI)
	assert.Equal(t, "http://example.com/b", created[1].URI)
	for _, u := range created {
		assert.True(t, u.IsRoot())
		assert.Equal(t, domain.URIStatusCanonical, u.Status)
	}

	created, existing, err = env.resolver.AddURLs(ctx, []string{"https://example.com/a"}, nil)
	require.NoError(t, err)
	assert.Empty(t, created)
	require.Len(t, existing, 1)
	assert.Equal(t, "https://example.com/a", existing[0].URI)
}

func TestResolver_AddURLs_Empty(t *testing.T) {
	env := newTestEnv(t)

	created, existing, err := env.resolver.AddURLs(context.Background(), []string{"ftp://x"}, nil)

	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Nil(t, existing)
}

func TestResolver_AddVariant(t *testing.T) {
	tests := []struct {
		name       string
		policy     domain.VariantPolicy
		status     domain.URIStatus
		wantStatus domain.URIStatus
		wantRoot   bool
	}{
		{"unknown deferred", domain.VariantPolicyDefer, domain.URIStatusUnknown, domain.URIStatusAlt, false},
		{"unknown prefers new", domain.VariantPolicyPreferNew, domain.URIStatusUnknown, domain.URIStatusCanonical, true},
		{"explicit alt", domain.VariantPolicyPreferNew, domain.URIStatusAlt, domain.URIStatusAlt, false},
		{"explicit canonical", domain.VariantPolicyDefer, domain.URIStatusCanonical, domain.URIStatusCanonical, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resolver := NewResolver(env.uris, tt.policy)
			ctx := context.Background()
			created, _, err := resolver.AddURLs(ctx, []string{"https://example.com/a"}, nil)
			require.NoError(t, err)
			original := created[0]

			added, err := resolver.AddVariant(ctx, "https://mirror.example.com/a", original.ID, tt.status)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, added.Status)
			assert.Equal(t, tt.wantRoot, added.IsRoot())

			root, members, err := resolver.Class(ctx, original.ID)
			require.NoError(t, err)
			assert.Len(t, members, 1)
			if tt.wantRoot {
				assert.Equal(t, added.ID, root.ID)
			} else {
				assert.Equal(t, original.ID, root.ID)
			}
		})
	}
}

func TestResolver_AddVariant_InvalidStatus(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.resolver.AddVariant(context.Background(), "https://a.example/", 1, "bogus")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolver_MergePromoteLookup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, _, err := env.resolver.AddURLs(ctx, []string{"https://a.example/", "https://b.example/"}, nil)
	require.NoError(t, err)
	a, b := created[0], created[1]

	require.NoError(t, env.resolver.Merge(ctx, a.ID, b.ID))

	root, members, err := env.resolver.Class(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, root.ID)
	require.Len(t, members, 1)
	assert.Equal(t, b.ID, members[0].ID)

	require.NoError(t, env.resolver.Promote(ctx, b.ID))

	root, _, err = env.resolver.Class(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, root.ID)

	found, err := env.resolver.Lookup(ctx, "https://B.example")
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)

	_, err = env.resolver.Lookup(ctx, "https://unknown.example/")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolver_AddURI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, created, err := env.resolver.AddURI(ctx, "upload://report.pdf")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "upload://report.pdf", u.URI)

	again, created, err := env.resolver.AddURI(ctx, "upload://report.pdf")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)

	_, _, err = env.resolver.AddURI(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolver_AddVariant_URNRoot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	urn, created, err := env.resolver.AddURI(ctx, "urn:isbn:9780000000001")
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, domain.URIStatusURN, urn.Status)
	alt, err := env.resolver.AddVariant(ctx, "https://mirror.example/title", urn.ID, domain.URIStatusAlt)
	require.NoError(t, err)

	added, err := env.resolver.AddVariant(ctx, "https://books.example/title", urn.ID, domain.URIStatusUnknown)

	require.NoError(t, err)
	assert.Equal(t, domain.URIStatusCanonical, added.Status)
	assert.True(t, added.IsRoot())

	root, members, err := env.resolver.Class(ctx, alt.ID)
	require.NoError(t, err)
	assert.Equal(t, added.ID, root.ID)
	require.Len(t, members, 2)
	for _, m := range members {
		require.NotNil(t, m.CanonicalID)
		assert.Equal(t, added.ID, *m.CanonicalID, "member %s", m.URI)
	}
	assert.Equal(t, urn.ID, members[0].ID)
	assert.Equal(t, domain.URIStatusURN, members[0].Status)
	assert.Equal(t, domain.URIStatusAlt, members[1].Status)
}

func TestNewResolver_InvalidPolicyDefers(t *testing.T) {
	env := newTestEnv(t)

	r := NewResolver(env.uris, "sometimes")

	assert.Equal(t, domain.VariantPolicyDefer, r.policy)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTP://Example.COM/Path", "http://example.com/Path"},
		{"drops default http port", "http://example.com:80/a", "http://example.com/a"},
		{"drops default https port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps other ports", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"removes utm params", "https://example.com/a?utm_source=x&utm_medium=y", "https://example.com/a"},
		{"removes click ids", "https://example.com/a?fbclid=1&gclid=2&id=3", "https://example.com/a?id=3"},
		{"sorts query", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"collapses slashes", "https://example.com//a///b", "https://example.com/a/b"},
		{"strips trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"keeps root slash", "https://example.com", "https://example.com/"},
		{"decodes unreserved escapes", "https://example.com/%7Euser", "https://example.com/~user"},
		{"keeps escaped slash", "https://example.com/a%2Fb", "https://example.com/a%2Fb"},
		{"uppercases escape hex", "https://example.com/a%2fb", "https://example.com/a%2Fb"},
		{"keeps escaped space", "https://example.com/a%20b", "https://example.com/a%20b"},
		{"trims whitespace", "  https://example.com/a  ", "https://example.com/a"},
		{"leaves urn alone", "urn:isbn:0451450523", "urn:isbn:0451450523"},
		{"leaves doi alone", "doi:10.1000/182", "doi:10.1000/182"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"HTTP://Example.COM:80//a/b/?utm_source=x&z=1&a=2#frag",
		"https://example.com/%7Euser/?q=hello+world",
		"https://web.archive.org/web/2020/https://example.com/a",
		"https://example.com/files/a%2Fb/",
		"urn:isbn:0451450523",
	}

	for _, in := range inputs {
		once, err := NormalizeURL(in)
		require.NoError(t, err)
		twice, err := NormalizeURL(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizeURL_EscapedSlashIsDistinct(t *testing.T) {
	escaped, err := NormalizeURL("https://example.com/repo/a%2Fb")
	require.NoError(t, err)
	plain, err := NormalizeURL("https://example.com/repo/a/b")
	require.NoError(t, err)

	assert.NotEqual(t, escaped, plain)
}

func TestRootStatus(t *testing.T) {
	tests := []struct {
		uri  string
		want URIStatus
	}{
		{"https://example.com/a", URIStatusCanonical},
		{"http://example.com/a", URIStatusCanonical},
		{"urn:isbn:9780000000001", URIStatusURN},
		{"doi:10.1000/182", URIStatusURN},
		{"file:///notes/a.txt", URIStatusURN},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, RootStatus(tt.uri))
		})
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no scheme", "example.com/a"},
		{"no host", "https:///a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeURL(tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestURI_Root(t *testing.T) {
	root := URI{ID: 1, Status: URIStatusCanonical}
	rootID := root.ID
	member := URI{ID: 2, Status: URIStatusAlt, CanonicalID: &rootID}

	assert.True(t, root.IsRoot())
	assert.Equal(t, int64(1), root.RootID())
	assert.False(t, member.IsRoot())
	assert.Equal(t, int64(1), member.RootID())
}

func TestURIStatus_IsValid(t *testing.T) {
	for _, s := range []URIStatus{URIStatusCanonical, URIStatusURN, URIStatusSnapshot, URIStatusAlt, URIStatusUnknown} {
		assert.True(t, s.IsValid(), s.String())
	}
	assert.False(t, URIStatus("primary").IsValid())
}

func TestArchivedURL(t *testing.T) {
	archived := "https://web.archive.org/web/20200101000000/https://example.com/a"

	assert.True(t, IsArchiveURL(archived))
	assert.Equal(t, "https://example.com/a", ArchivedURL(archived))
	assert.False(t, IsArchiveURL("https://example.com/a"))
	assert.Empty(t, ArchivedURL("https://example.com/a"))
}

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("http://a.example/x"))
	assert.True(t, IsHTTPURL("https://a.example/x"))
	assert.False(t, IsHTTPURL("file:///tmp/x"))
	assert.False(t, IsHTTPURL("urn:isbn:1"))
}

func TestVariantPolicy_IsValid(t *testing.T) {
	assert.True(t, VariantPolicyDefer.IsValid())
	assert.True(t, VariantPolicyPreferNew.IsValid())
	assert.False(t, VariantPolicy("newest").IsValid())
}

func TestNormalizeURL_ArchiveKeepsEmbeddedURL(t *testing.T) {
	got, err := NormalizeURL("https://web.archive.org/web/2020/https://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, "https://web.archive.org/web/2020/https://example.com/a", got)
	assert.Equal(t, "https://example.com/a", ArchivedURL(got))
}

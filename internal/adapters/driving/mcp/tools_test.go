package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

var testSearchDefaults = domain.SearchSettings{
	Mode:          domain.SearchModeSemantic,
	Lambda:        0.7,
	Limit:         20,
	CandidatePool: 1000,
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		docID := int64(4)
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{
				{
					Fragment: domain.Fragment{
						ID:    12,
						DocID: &docID,
						Text:  "This is the content",
						Scale: domain.FragmentTypeParagraph,
					},
					DocumentURI:   "https://a.example/",
					DocumentTitle: "Test Doc",
					Distance:      0.05,
					Score:         0.95,
				},
			},
		}

		server, err := NewServer(&Ports{Search: mockSearch, SearchDefaults: testSearchDefaults})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test", Limit: 10})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		got := output.Results[0]
		assert.Equal(t, int64(12), got.FragmentID)
		assert.Equal(t, int64(4), got.DocumentID)
		assert.Equal(t, "Test Doc", got.Title)
		assert.Equal(t, "https://a.example/", got.URI)
		assert.Equal(t, "paragraph", got.Scale)
		assert.Equal(t, 0.95, got.Score)
		assert.Equal(t, "This is the content", got.Text)
		assert.Equal(t, 10, mockSearch.query.Limit)
	})

	t.Run("standalone fragment has no document", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{{Fragment: domain.Fragment{ID: 3, Scale: domain.FragmentTypeStandaloneClaim}}},
		}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Zero(t, output.Results[0].DocumentID)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("search failed"),
		}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_searchQuery(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}, SearchDefaults: testSearchDefaults})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input SearchInput
		want  domain.SearchQuery
	}{
		{
			name:  "defaults",
			input: SearchInput{Query: "q"},
			want: domain.SearchQuery{
				Text: "q", Mode: domain.SearchModeSemantic, Limit: 20, CandidatePool: 1000,
			},
		},
		{
			name:  "mmr takes default lambda",
			input: SearchInput{Query: "q", Mode: "mmr"},
			want: domain.SearchQuery{
				Text: "q", Mode: domain.SearchModeMMR, Lambda: 0.7, Limit: 20, CandidatePool: 1000,
			},
		},
		{
			name: "explicit fields",
			input: SearchInput{
				NearFragment: 9, Mode: "mmr", Lambda: 0.2, Limit: 5, Offset: 10,
				Collection: "climate", Language: "fr", Model: "ada2",
			},
			want: domain.SearchQuery{
				FragmentID: 9, Mode: domain.SearchModeMMR, Lambda: 0.2, Limit: 5, Offset: 10,
				Model: "ada2", CandidatePool: 1000,
				Filter: domain.SearchFilter{Collection: "climate", Language: "fr"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, server.searchQuery(tt.input))
		})
	}
}

func TestServer_handleAddURL(t *testing.T) {
	ctx := context.Background()

	t.Run("submits urls as the configured principal", func(t *testing.T) {
		ingest := &mockIngestService{
			docs: []domain.Document{{ID: 7, URI: "https://a.example/"}},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: ingest, Principal: "assistant"})
		require.NoError(t, err)

		input := AddURLInput{URLs: []string{"https://a.example/", "https://b.example/"}, Collections: []string{"climate"}}
		_, output, err := server.handleAddURL(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "assistant", ingest.principal)
		assert.Equal(t, input.URLs, ingest.urls)
		assert.Equal(t, []string{"climate"}, ingest.collections)
		assert.Equal(t, []AddedDocument{{ID: 7, URI: "https://a.example/"}}, output.Documents)
		assert.Equal(t, 1, output.Skipped)
	})

	t.Run("requires urls", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: &mockIngestService{}})
		require.NoError(t, err)

		_, _, err = server.handleAddURL(ctx, nil, AddURLInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns ingest errors", func(t *testing.T) {
		ingest := &mockIngestService{err: domain.ErrForbidden}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: ingest})
		require.NoError(t, err)

		_, _, err = server.handleAddURL(ctx, nil, AddURLInput{URLs: []string{"https://a.example/"}})

		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

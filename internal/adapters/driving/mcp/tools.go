package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query        string  `json:"query,omitempty" jsonschema:"text to search for"`
	NearFragment int64   `json:"near_fragment,omitempty" jsonschema:"search near an existing fragment instead of a text"`
	Mode         string  `json:"mode,omitempty" jsonschema:"ranking mode: semantic or mmr"`
	Lambda       float64 `json:"lambda,omitempty" jsonschema:"MMR relevance weight between 0 and 1"`
	Limit        int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 20)"`
	Offset       int     `json:"offset,omitempty" jsonschema:"number of ranked results to skip"`
	Collection   string  `json:"collection,omitempty" jsonschema:"restrict to one collection"`
	Language     string  `json:"language,omitempty" jsonschema:"restrict to one language code"`
	Model        string  `json:"model,omitempty" jsonschema:"embedding model (default: base model)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	FragmentID int64   `json:"fragment_id"`
	DocumentID int64   `json:"document_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	URI        string  `json:"uri,omitempty"`
	Scale      string  `json:"scale"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Distance   float64 `json:"distance"`
	Text       string  `json:"text"`
}

// AddURLInput is the input schema for the add_url tool.
type AddURLInput struct {
	URLs        []string `json:"urls" jsonschema:"http(s) URLs to download and index"`
	Collections []string `json:"collections,omitempty" jsonschema:"collections to tag the documents with"`
}

// AddURLOutput is the output schema for the add_url tool.
type AddURLOutput struct {
	Documents []AddedDocument `json:"documents"`
	Skipped   int             `json:"skipped"`
}

// AddedDocument is one document created by add_url.
type AddedDocument struct {
	ID  int64  `json:"id"`
	URI string `json:"uri"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search paragraphs and claims by meaning, optionally diversified with MMR",
	}, s.handleSearch)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "add_url",
			Description: "Submit URLs for download, extraction and embedding",
		}, s.handleAddURL)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	query := s.searchQuery(input)

	results, err := s.ports.Search.Search(ctx, query)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		r := &results[i]
		out := SearchResultOutput{
			FragmentID: r.Fragment.ID,
			Title:      r.DocumentTitle,
			URI:        r.DocumentURI,
			Scale:      string(r.Fragment.Scale),
			Rank:       r.Rank,
			Score:      r.Score,
			Distance:   r.Distance,
			Text:       r.Fragment.Text,
		}
		if r.Fragment.DocID != nil {
			out.DocumentID = *r.Fragment.DocID
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

// searchQuery maps tool input onto a query, filling configured defaults.
func (s *Server) searchQuery(input SearchInput) domain.SearchQuery {
	defaults := s.ports.SearchDefaults

	query := domain.SearchQuery{
		Text:          input.Query,
		FragmentID:    input.NearFragment,
		Mode:          domain.SearchMode(input.Mode),
		Model:         input.Model,
		Lambda:        input.Lambda,
		Limit:         input.Limit,
		Offset:        input.Offset,
		CandidatePool: defaults.CandidatePool,
		Filter: domain.SearchFilter{
			Collection: input.Collection,
			Language:   input.Language,
		},
	}
	if query.Mode == "" {
		query.Mode = defaults.Mode
	}
	if query.Lambda == 0 && query.Mode == domain.SearchModeMMR {
		query.Lambda = defaults.Lambda
	}
	if query.Limit <= 0 {
		query.Limit = defaults.Limit
	}
	return query
}

// handleAddURL handles the add_url tool invocation.
func (s *Server) handleAddURL(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AddURLInput,
) (*mcp.CallToolResult, AddURLOutput, error) {
	if len(input.URLs) == 0 {
		return nil, AddURLOutput{}, fmt.Errorf("%w: at least one url is required", domain.ErrInvalidInput)
	}

	docs, err := s.ports.Ingest.SubmitURLs(ctx, s.ports.Principal, input.URLs, input.Collections)
	if err != nil {
		return nil, AddURLOutput{}, err
	}

	output := AddURLOutput{
		Documents: make([]AddedDocument, len(docs)),
		Skipped:   len(input.URLs) - len(docs),
	}
	for i := range docs {
		output.Documents[i] = AddedDocument{ID: docs[i].ID, URI: docs[i].URI}
	}
	return nil, output, nil
}

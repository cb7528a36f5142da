package mcp

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	query   domain.SearchQuery
}

func (m *mockSearchService) Search(_ context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	m.query = query
	return m.results, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	docs        []domain.Document
	err         error
	principal   string
	urls        []string
	collections []string
}

func (m *mockIngestService) SubmitURL(_ context.Context, _, _ string, _ []string) (*domain.Document, error) {
	return nil, m.err
}

func (m *mockIngestService) SubmitURLs(
	_ context.Context, principal string, urls, collections []string,
) ([]domain.Document, error) {
	m.principal = principal
	m.urls = urls
	m.collections = collections
	return m.docs, m.err
}

func (m *mockIngestService) SubmitFile(
	_ context.Context, _, _ string, _ []byte, _ string, _ []string,
) (*domain.Document, error) {
	return nil, m.err
}

func (m *mockIngestService) DeleteDocument(_ context.Context, _ string, _ int64) error {
	return m.err
}

func (m *mockIngestService) GetDocument(_ context.Context, _ int64) (*domain.Document, error) {
	return nil, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	content   string
	details   *driving.DocumentDetails
	err       error
	lastID    int64
}

func (m *mockDocumentService) List(_ context.Context, _ driven.ListOptions) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.Document, error) {
	m.lastID = id
	return nil, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, id int64) (string, error) {
	m.lastID = id
	return m.content, m.err
}

func (m *mockDocumentService) GetDetails(_ context.Context, id int64) (*driving.DocumentDetails, error) {
	m.lastID = id
	return m.details, m.err
}

func (m *mockDocumentService) Refresh(_ context.Context, _ int64, _ bool) error {
	return m.err
}

func (m *mockDocumentService) Reparse(_ context.Context, _ int64) error {
	return m.err
}

func (m *mockDocumentService) Open(_ context.Context, _ int64) error {
	return m.err
}

package cli

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
)

func int64Ptr(v int64) *int64 { return &v }

var testRequested = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testDocuments() []domain.Document {
	return []domain.Document{
		{
			ID:           1,
			URI:          "https://example.com/one",
			Title:        "Test Document 1",
			MIMEType:     "text/html; charset=utf-8",
			Requested:    testRequested,
			Attempted:    true,
			ReturnCode:   200,
			FileIdentity: "f1",
			TextIdentity: "t1",
			Collections:  []string{"climate"},
			AddedBy:      "alice",
		},
		{
			ID:        2,
			URI:       "https://example.com/two",
			Requested: testRequested,
		},
	}
}

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	principal   string
	urls        []string
	collections []string
	fileURL     string
	content     string
	mimeType    string
	deleted     int64
	docs        []domain.Document
	err         error
}

func (m *mockIngestService) SubmitURL(
	ctx context.Context, principal, url string, collections []string,
) (*domain.Document, error) {
	docs, err := m.SubmitURLs(ctx, principal, []string{url}, collections)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

func (m *mockIngestService) SubmitURLs(
	_ context.Context, principal string, urls []string, collections []string,
) ([]domain.Document, error) {
	m.principal = principal
	m.urls = urls
	m.collections = collections
	return m.docs, m.err
}

func (m *mockIngestService) SubmitFile(
	_ context.Context, principal, url string, content []byte, mimeType string, collections []string,
) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.principal = principal
	m.fileURL = url
	m.content = string(content)
	m.mimeType = mimeType
	m.collections = collections
	return &domain.Document{ID: 7, URI: url, MIMEType: "text/plain; charset=utf-8"}, nil
}

func (m *mockIngestService) DeleteDocument(_ context.Context, principal string, docID int64) error {
	m.principal = principal
	m.deleted = docID
	return m.err
}

func (m *mockIngestService) GetDocument(_ context.Context, docID int64) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == docID {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// mockDocumentService implements driving.DocumentService for testing.
type mockDocumentService struct {
	docs      []domain.Document
	details   *driving.DocumentDetails
	content   string
	err       error
	listOpts  driven.ListOptions
	refreshed int64
	reparse   bool
	reparsed  int64
	opened    int64
}

func newMockDocumentService() *mockDocumentService {
	docs := testDocuments()
	return &mockDocumentService{
		docs:    docs,
		content: "First paragraph.\n\nSecond paragraph.",
		details: &driving.DocumentDetails{
			Document:     docs[0],
			State:        domain.DocumentStateExtracted,
			CanonicalURI: "https://example.com/canonical",
			Equivalents: []domain.URI{
				{ID: 11, URI: "https://example.com/canonical", Status: domain.URIStatusCanonical},
				{ID: 12, URI: "https://web.archive.org/web/2024/https://example.com/one", Status: domain.URIStatusSnapshot},
			},
			FragmentCount: 3,
			Retrieved:     testRequested.Add(time.Minute),
			Metadata:      map[string]string{"author": "Jane Doe", "etag": "abc"},
		},
	}
}

func (m *mockDocumentService) List(_ context.Context, opts driven.ListOptions) ([]domain.Document, error) {
	m.listOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *mockDocumentService) Get(_ context.Context, docID int64) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].ID == docID {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetContent(_ context.Context, _ int64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.content, nil
}

func (m *mockDocumentService) GetDetails(_ context.Context, _ int64) (*driving.DocumentDetails, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.details, nil
}

func (m *mockDocumentService) Refresh(_ context.Context, docID int64, reparse bool) error {
	m.refreshed = docID
	m.reparse = reparse
	return m.err
}

func (m *mockDocumentService) Reparse(_ context.Context, docID int64) error {
	m.reparsed = docID
	return m.err
}

func (m *mockDocumentService) Open(_ context.Context, docID int64) error {
	m.opened = docID
	return m.err
}

// mockSearchService implements driving.SearchService for testing.
type mockSearchService struct {
	query   domain.SearchQuery
	results []domain.SearchResult
	err     error
}

func newMockSearchService() *mockSearchService {
	return &mockSearchService{
		results: []domain.SearchResult{
			{
				Fragment: domain.Fragment{
					ID:    42,
					DocID: int64Ptr(1),
					Text:  "Sea levels rose by 20 centimetres over the last century.",
					Scale: domain.FragmentTypeParagraph,
				},
				DocumentURI:   "https://example.com/one",
				DocumentTitle: "Test Document 1",
				Distance:      0.25,
				Score:         0.75,
			},
			{
				Fragment: domain.Fragment{
					ID:    43,
					Text:  "Glaciers are retreating.",
					Scale: domain.FragmentTypeStandaloneClaim,
				},
				Distance: 0.5,
				Score:    0.5,
				Rank:     1,
			},
		},
	}
}

func (m *mockSearchService) Search(_ context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	m.query = query
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockResolver implements driving.URIResolver for testing.
type mockResolver struct {
	root      domain.URI
	members   []domain.URI
	classOf   int64
	mergeInto int64
	mergeFrom int64
	promoted  int64
	variant   string
	status    domain.URIStatus
	err       error
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		root: domain.URI{ID: 1, URI: "https://example.com/paper", Status: domain.URIStatusCanonical},
		members: []domain.URI{
			{ID: 2, URI: "https://example.com/paper?utm=x", Status: domain.URIStatusAlt, CanonicalID: int64Ptr(1)},
		},
	}
}

func (m *mockResolver) AddURLs(
	_ context.Context, _ []string, _ map[string]int64,
) (created, existing []domain.URI, err error) {
	return nil, nil, m.err
}

func (m *mockResolver) AddVariant(
	_ context.Context, uri string, existingID int64, status domain.URIStatus,
) (*domain.URI, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.variant = uri
	m.status = status
	return &domain.URI{ID: 9, URI: uri, Status: status, CanonicalID: int64Ptr(existingID)}, nil
}

func (m *mockResolver) Merge(_ context.Context, intoID, fromID int64) error {
	m.mergeInto = intoID
	m.mergeFrom = fromID
	return m.err
}

func (m *mockResolver) Promote(_ context.Context, uriID int64) error {
	m.promoted = uriID
	return m.err
}

func (m *mockResolver) Class(_ context.Context, uriID int64) (*domain.URI, []domain.URI, error) {
	m.classOf = uriID
	if m.err != nil {
		return nil, nil, m.err
	}
	root := m.root
	return &root, m.members, nil
}

func (m *mockResolver) Lookup(_ context.Context, url string) (*domain.URI, error) {
	if m.err != nil {
		return nil, m.err
	}
	if url == m.root.URI {
		root := m.root
		return &root, nil
	}
	return nil, domain.ErrNotFound
}

// mockFetchService implements driving.FetchService for testing.
type mockFetchService struct {
	docID   int64
	params  map[string]any
	outcome *domain.FetchOutcome
	err     error
}

func (m *mockFetchService) Fetch(_ context.Context, docID int64, params map[string]any) (*domain.FetchOutcome, error) {
	m.docID = docID
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome, nil
}

// mockExtractService implements driving.ExtractService for testing.
type mockExtractService struct {
	docID  int64
	kind   domain.ExtractorKind
	params map[string]any
	status domain.ExtractStatus
	err    error
}

func (m *mockExtractService) Extract(
	_ context.Context, docID int64, kind domain.ExtractorKind, params map[string]any,
) (*domain.ExtractOutcome, error) {
	m.docID = docID
	m.kind = kind
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	status := m.status
	if status == "" {
		status = domain.ExtractExtracted
	}
	return &domain.ExtractOutcome{Status: status, DocID: docID, FragmentIDs: []int64{100, 101}}, nil
}

// mockEmbedService implements driving.EmbedService for testing.
type mockEmbedService struct {
	opts domain.BatchOptions
	err  error
}

func (m *mockEmbedService) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, m.err
}

func (m *mockEmbedService) HandleEmbedMessage(context.Context, string) error {
	return m.err
}

func (m *mockEmbedService) BatchEmbed(_ context.Context, opts domain.BatchOptions) (*domain.BatchResult, error) {
	m.opts = opts
	return &domain.BatchResult{Embedded: 12, Skipped: 1, Batches: 2}, m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error
	model       domain.ModelSettings
	mode        domain.SearchMode
	base        string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetSearchMode(mode domain.SearchMode) error {
	m.mode = mode
	return nil
}

func (m *mockSettingsService) SetModel(model domain.ModelSettings) error {
	m.model = model
	return nil
}

func (m *mockSettingsService) SetBaseModel(name string) error {
	for _, model := range m.settings.Embedding.Models {
		if model.Name == name {
			m.base = name
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	return domain.SchedulerConfig{}
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.pingErr
}

// mockDispatcher implements driving.Dispatcher for testing.
type mockDispatcher struct {
	mu      sync.Mutex
	started bool
}

func (m *mockDispatcher) Enqueue(context.Context, ...domain.Message) error { return nil }

func (m *mockDispatcher) Register(domain.Topic, driving.Handler) {}

func (m *mockDispatcher) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (m *mockDispatcher) Stop() error { return nil }

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	ingest   *mockIngestService
	document *mockDocumentService
	search   *mockSearchService
	resolver *mockResolver
	fetch    *mockFetchService
	extract  *mockExtractService
	embed    *mockEmbedService
	settings *mockSettingsService
}

var installed testServices

// setupTestServices installs mock services and returns a restore function.
// The installed mocks are reachable through installed.
func setupTestServices() func() {
	oldSettings := settingsService
	oldResolver := resolverService
	oldIngest := ingestService
	oldDocument := documentService
	oldSearch := searchService
	oldEmbed := embedService
	oldFetch := fetchService
	oldExtract := extractService
	oldDispatcher := dispatcher
	oldScheduler := scheduler
	oldDefaults := searchDefaults
	oldReady := servicesReady
	oldPrincipal := principal

	installed = testServices{
		ingest:   &mockIngestService{docs: testDocuments()},
		document: newMockDocumentService(),
		search:   newMockSearchService(),
		resolver: newMockResolver(),
		fetch:    &mockFetchService{outcome: &domain.FetchOutcome{Status: domain.FetchFetched, DocID: 1, MIMEType: "text/html"}},
		extract:  &mockExtractService{},
		embed:    &mockEmbedService{},
		settings: newMockSettingsService(),
	}

	settingsService = installed.settings
	resolverService = installed.resolver
	ingestService = installed.ingest
	documentService = installed.document
	searchService = installed.search
	embedService = installed.embed
	fetchService = installed.fetch
	extractService = installed.extract
	dispatcher = &mockDispatcher{}
	scheduler = nil
	searchDefaults = domain.DefaultAppSettings().Search
	servicesReady = true
	principal = "tester"

	return func() {
		settingsService = oldSettings
		resolverService = oldResolver
		ingestService = oldIngest
		documentService = oldDocument
		searchService = oldSearch
		embedService = oldEmbed
		fetchService = oldFetch
		extractService = oldExtract
		dispatcher = oldDispatcher
		scheduler = oldScheduler
		searchDefaults = oldDefaults
		servicesReady = oldReady
		principal = oldPrincipal
	}
}

// setupNoServices clears every service so commands report them missing.
func setupNoServices() func() {
	restore := setupTestServices()
	settingsService = nil
	resolverService = nil
	ingestService = nil
	documentService = nil
	searchService = nil
	embedService = nil
	fetchService = nil
	extractService = nil
	dispatcher = nil
	return restore
}

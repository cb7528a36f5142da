package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	blobmemory "github.com/custodia-labs/claimminer/internal/adapters/driven/blob/memory"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService with fixed vectors per text.
type mockEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	dims     int
	err      error
	batches  [][]string
	closeErr error
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{0, 0, 1},
		dims:     3,
	}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := m.vectors[text]
		if !ok {
			v = m.fallback
		}
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return m.dims }
func (m *mockEmbedder) ModelName() string          { return "mock" }
func (m *mockEmbedder) Ping(context.Context) error { return m.err }
func (m *mockEmbedder) Close() error               { return m.closeErr }

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockEmbedder) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

// mockQueue records enqueued messages.
type mockQueue struct {
	mu   sync.Mutex
	msgs []domain.Message
	err  error
}

func (q *mockQueue) Enqueue(_ context.Context, msgs ...domain.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msgs...)
	return nil
}

func (q *mockQueue) payloads(topic domain.Topic) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, m := range q.msgs {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// mockAuthorizer allows every principal not listed in denied.
type mockAuthorizer struct {
	denied map[string]bool
	err    error
	checks []string
}

func (a *mockAuthorizer) Can(_ context.Context, principal, action, collection string) (bool, error) {
	a.checks = append(a.checks, action+":"+collection)
	if a.err != nil {
		return false, a.err
	}
	return !a.denied[principal], nil
}

// mockCollections maps collection names to extra models.
type mockCollections map[string][]string

func (c mockCollections) Exists(_ context.Context, name string) (bool, error) {
	_, ok := c[name]
	return ok, nil
}

func (c mockCollections) Models(_ context.Context, name string) ([]string, error) {
	return c[name], nil
}

// mockMetrics records measurements.
type mockMetrics struct {
	mu       sync.Mutex
	handled  map[string]int
	stages   map[string]int
	embedded map[string]int
	searches map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		handled:  make(map[string]int),
		stages:   make(map[string]int),
		embedded: make(map[string]int),
		searches: make(map[string]int),
	}
}

func (m *mockMetrics) MessageHandled(topic, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handled[topic+"/"+outcome]++
}

func (m *mockMetrics) StageOutcome(stage, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage+"/"+outcome]++
}

func (m *mockMetrics) EmbeddingsComputed(model string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedded[model] += n
}

func (m *mockMetrics) SearchServed(mode string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[mode]++
}

func (m *mockMetrics) handledCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handled[key]
}

// mockFetcher serves canned responses per URL.
type mockFetcher struct {
	responses map[string]*driven.FetchResponse
	errs      map[string]error
	calls     int
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		responses: make(map[string]*driven.FetchResponse),
		errs:      make(map[string]error),
	}
}

func (f *mockFetcher) Fetch(_ context.Context, url string) (*driven.FetchResponse, error) {
	f.calls++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if resp, ok := f.responses[url]; ok {
		copied := *resp
		return &copied, nil
	}
	return &driven.FetchResponse{StatusCode: 404, FinalURL: url}, nil
}

func (f *mockFetcher) serve(url, contentType, body string) {
	f.responses[url] = &driven.FetchResponse{
		StatusCode:  200,
		Body:        []byte(body),
		ContentType: contentType,
		FinalURL:    url,
	}
}

// mockExtractor splits content on blank lines.
type mockExtractor struct {
	kind  domain.ExtractorKind
	title string
	err   error
	calls int
}

func (e *mockExtractor) Kind() domain.ExtractorKind { return e.kind }

func (e *mockExtractor) Extract(_ context.Context, content []byte) (*domain.Extraction, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	var paras []string
	for _, p := range strings.Split(string(content), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return &domain.Extraction{Text: strings.Join(paras, "\n"), Paragraphs: paras, Title: e.title}, nil
}

// minLengthPipeline drops paragraphs shorter than min runes.
type minLengthPipeline struct {
	min int
}

func (p minLengthPipeline) Process(_ context.Context, paras []domain.Paragraph) ([]domain.Paragraph, error) {
	var kept []domain.Paragraph
	for _, para := range paras {
		if len([]rune(para.Text)) >= p.min {
			kept = append(kept, para)
		}
	}
	return kept, nil
}

// mockDetector returns a fixed language.
type mockDetector struct {
	lang string
}

func (d mockDetector) Detect(string) (string, bool) {
	return d.lang, d.lang != ""
}

// mockFetchService returns a canned fetch outcome.
type mockFetchService struct {
	outcome *domain.FetchOutcome
	err     error
	params  map[string]any
}

func (m *mockFetchService) Fetch(_ context.Context, docID int64, params map[string]any) (*domain.FetchOutcome, error) {
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	out := *m.outcome
	out.DocID = docID
	return &out, nil
}

// mockExtractService returns a canned extract outcome.
type mockExtractService struct {
	outcome *domain.ExtractOutcome
	err     error
	kinds   []domain.ExtractorKind
}

func (m *mockExtractService) Extract(
	_ context.Context, docID int64, kind domain.ExtractorKind, _ map[string]any,
) (*domain.ExtractOutcome, error) {
	m.kinds = append(m.kinds, kind)
	if m.err != nil {
		return nil, m.err
	}
	out := *m.outcome
	out.DocID = docID
	return &out, nil
}

// mockEmbedService records embed payloads.
type mockEmbedService struct {
	payloads []string
	err      error
}

func (m *mockEmbedService) Embed(context.Context, []string, string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (m *mockEmbedService) HandleEmbedMessage(_ context.Context, payload string) error {
	m.payloads = append(m.payloads, payload)
	return m.err
}

func (m *mockEmbedService) BatchEmbed(context.Context, domain.BatchOptions) (*domain.BatchResult, error) {
	return nil, errors.New("not implemented")
}

// mockDispatcher records registered topics.
type mockDispatcher struct {
	mockQueue
	handlers map[domain.Topic]driving.Handler
}

func (d *mockDispatcher) Register(topic domain.Topic, h driving.Handler) {
	if d.handlers == nil {
		d.handlers = make(map[domain.Topic]driving.Handler)
	}
	d.handlers[topic] = h
}

func (d *mockDispatcher) Start(context.Context) error { return nil }
func (d *mockDispatcher) Stop() error                 { return nil }

// --- Test environment over SQLite and in-memory blobs ---

type testEnv struct {
	store     *sqlite.Store
	docs      driven.DocumentStore
	uris      driven.URIStore
	vectors   driven.VectorStore
	blobs     *blobmemory.Store
	analyzers *AnalyzerCache
	embedder  *mockEmbedder
	models    *ModelRegistry
	queue     *mockQueue
	resolver  *Resolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder := newMockEmbedder()
	models := NewModelRegistry(domain.DefaultBaseModel, nil)
	models.Register(domain.DefaultBaseModel, embedder)

	return &testEnv{
		store:     store,
		docs:      store.DocumentStore(),
		uris:      store.URIStore(),
		vectors:   store.VectorStore(),
		blobs:     blobmemory.New(),
		analyzers: NewAnalyzerCache(store.AnalyzerStore()),
		embedder:  embedder,
		models:    models,
		queue:     &mockQueue{},
		resolver:  NewResolver(store.URIStore(), domain.VariantPolicyDefer),
	}
}

// createDocument stores a URI and a submitted document for it.
func (e *testEnv) createDocument(t *testing.T, uri string, collections ...string) *domain.Document {
	t.Helper()
	ctx := context.Background()

	created, existing, err := e.uris.AddURLs(ctx, []string{uri}, nil)
	require.NoError(t, err)
	u := append(created, existing...)[0]

	doc := &domain.Document{URIID: u.ID, AddedBy: "tester", Collections: collections}
	require.NoError(t, e.docs.CreateDocument(ctx, doc))
	return doc
}

// extractedDocument stores a document with derived text and one
// paragraph fragment per text. Returns the document and fragment IDs.
func (e *testEnv) extractedDocument(
	t *testing.T, uri string, texts []string, collections ...string,
) (*domain.Document, []int64) {
	t.Helper()
	ctx := context.Background()
	doc := e.createDocument(t, uri, collections...)

	full := strings.Join(texts, "\n")
	key, err := e.blobs.Put(ctx, []byte(full))
	require.NoError(t, err)

	doc.Attempted = true
	doc.ReturnCode = 200
	doc.FileIdentity = key
	doc.FileSize = int64(len(full))
	doc.MIMEType = "text/plain"
	doc.Language = "en"
	require.NoError(t, e.docs.UpdateDocument(ctx, doc))

	analyzerID, err := e.analyzers.ID(ctx, domain.Analyzer{Name: "process_text", Version: 1})
	require.NoError(t, err)

	frags := make([]domain.Fragment, len(texts))
	for i, p := range domain.PositionParagraphs(texts) {
		frags[i] = domain.Fragment{
			DocID: &doc.ID, Position: p.Position, CharPosition: p.CharPosition,
			Text: p.Text, Scale: domain.FragmentTypeParagraph, Language: "en",
		}
	}
	saved, err := e.docs.ReplaceFragments(ctx, driven.ExtractionUpdate{
		DocID: doc.ID, Fragments: frags, TextIdentity: key, TextSize: int64(len(full)),
		TextAnalyzerID: analyzerID, Language: "en", Title: "Title of " + uri,
	})
	require.NoError(t, err)

	ids := make([]int64, len(saved))
	for i, f := range saved {
		ids[i] = f.ID
	}
	got, err := e.docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	return got, ids
}

// saveVector stores a base-model fragment embedding.
func (e *testEnv) saveVector(t *testing.T, docID, fragmentID int64, vec []float32) {
	t.Helper()
	require.NoError(t, e.vectors.Save(context.Background(), domain.Embedding{
		Model:  domain.DefaultBaseModel,
		Target: domain.FragmentTarget(fragmentID),
		DocID:  &docID,
		Scale:  domain.FragmentTypeParagraph,
		Vector: vec,
	}))
}

func (e *testEnv) embeddingService(maxSize int) *EmbeddingService {
	return NewEmbeddingService(e.models, e.docs, e.blobs, e.vectors, e.analyzers, maxSize, nil)
}

func (e *testEnv) ingestService(auth driven.Authorizer, collections driven.CollectionResolver, dedup int64) *IngestService {
	if auth == nil {
		auth = &mockAuthorizer{}
	}
	return NewIngestService(auth, collections, e.resolver, e.docs, e.blobs, e.vectors, e.queue, dedup)
}

package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance. No rate limits.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API. Rate limited.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (rate limited)"
	default:
		return unknownDescription
	}
}

// AllProviders returns every supported embedding provider.
func AllProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI}
}

// DefaultEmbeddingModels returns the default model identifier per provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-ada-002",
	}
}

// CASBackend selects the content-addressable store implementation.
type CASBackend string

// Available CAS backends.
const (
	CASBackendFS     CASBackend = "fs"
	CASBackendBadger CASBackend = "badger"
	CASBackendMemory CASBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b CASBackend) IsValid() bool {
	return b == CASBackendFS || b == CASBackendBadger || b == CASBackendMemory
}

// VectorBackend selects where embeddings are stored and searched.
type VectorBackend string

// Available vector backends.
const (
	VectorBackendSQLite   VectorBackend = "sqlite"
	VectorBackendPGVector VectorBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	return b == VectorBackendSQLite || b == VectorBackendPGVector
}

// StorageSettings configures persistence.
type StorageSettings struct {
	// DataDir holds the database and blobs. Empty means ~/.claimminer/data.
	DataDir string

	// CASBackend selects the blob store.
	CASBackend CASBackend

	// VectorBackend selects the embedding store.
	VectorBackend VectorBackend

	// PostgresDSN is required for the pgvector backend.
	PostgresDSN string
}

// ModelSettings configures one embedding model.
type ModelSettings struct {
	// Name is the registry name used in messages and queries.
	Name string

	// Provider selects the adapter.
	Provider AIProvider

	// Model is the provider's model identifier.
	Model string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// APIKey for cloud providers.
	APIKey string

	// Dimensions overrides the provider's default vector size.
	Dimensions int

	// RequestsPerMinute throttles remote calls. 0 means the provider default.
	RequestsPerMinute int
}

// IsConfigured reports whether the model has a known provider and, for
// cloud providers, an API key.
func (m ModelSettings) IsConfigured() bool {
	if !m.Provider.IsValid() {
		return false
	}
	return !m.Provider.RequiresAPIKey() || m.APIKey != ""
}

// EmbeddingSettings configures the embedding service.
type EmbeddingSettings struct {
	// BaseModel is embedded for every fragment and document.
	BaseModel string

	// Models lists every available model.
	Models []ModelSettings

	// CollectionModels maps collection names to extra models.
	CollectionModels map[string][]string

	// RetryInterval is the fixed backoff after a rate-limit signal.
	RetryInterval time.Duration

	// MaxRetries bounds rate-limit retries per batch.
	MaxRetries int

	// MaxSize is the rune cap on text sent to a model.
	MaxSize int
}

// Model returns the settings for a named model.
func (e EmbeddingSettings) Model(name string) (ModelSettings, bool) {
	for _, m := range e.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSettings{}, false
}

// PipelineSettings configures ingestion.
type PipelineSettings struct {
	// MinParagraphLength discards shorter paragraphs.
	MinParagraphLength int

	// MaxParagraphLength discards longer paragraphs. 0 disables the check.
	MaxParagraphLength int

	// DedupMinSize is the byte floor for content-identity merging.
	DedupMinSize int64

	// ExtractWorkers bounds concurrent CPU-bound extractions.
	ExtractWorkers int

	// FetchTimeout bounds one download.
	FetchTimeout time.Duration

	// UserAgent is sent with downloads.
	UserAgent string
}

// DispatcherSettings configures the task dispatcher.
type DispatcherSettings struct {
	// Partitions per topic.
	Partitions int

	// PollInterval is the wait when a partition is empty.
	PollInterval time.Duration

	// RetryDelay is the wait before redelivering a soft miss.
	RetryDelay time.Duration

	// MaxSoftRetries bounds soft-miss redeliveries.
	MaxSoftRetries int
}

// ResolverSettings configures the URI equivalence resolver.
type ResolverSettings struct {
	// VariantPolicy decides the canonical member for unknown variants.
	VariantPolicy VariantPolicy
}

// SearchSettings configures retrieval defaults.
type SearchSettings struct {
	// Mode is the default ranking mode.
	Mode SearchMode

	// Lambda is the default MMR trade-off.
	Lambda float64

	// Limit is the default page size.
	Limit int

	// CandidatePool bounds MMR candidates.
	CandidatePool int
}

// AuthSettings configures the built-in authorizer.
type AuthSettings struct {
	// Principals allowed to submit and delete. Empty allows everyone.
	Principals []string
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	// Addr to serve /metrics on. Empty disables the endpoint.
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Storage    StorageSettings
	Embedding  EmbeddingSettings
	Pipeline   PipelineSettings
	Dispatcher DispatcherSettings
	Resolver   ResolverSettings
	Search     SearchSettings
	Auth       AuthSettings
	Metrics    MetricsSettings
}

// Default model names.
const (
	DefaultBaseModel   = "nomic"
	DefaultRemoteModel = "ada2"
)

// DefaultAppSettings returns default application settings.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Storage: StorageSettings{
			CASBackend:    CASBackendFS,
			VectorBackend: VectorBackendSQLite,
		},
		Embedding: EmbeddingSettings{
			BaseModel: DefaultBaseModel,
			Models: []ModelSettings{
				{Name: DefaultBaseModel, Provider: AIProviderOllama, Model: "nomic-embed-text"},
			},
			RetryInterval: 20 * time.Second,
			MaxRetries:    5,
			MaxSize:       20000,
		},
		Pipeline: PipelineSettings{
			MinParagraphLength: 120,
			DedupMinSize:       1000,
			ExtractWorkers:     2,
			FetchTimeout:       60 * time.Second,
			UserAgent:          "claimminer/1.0",
		},
		Dispatcher: DispatcherSettings{
			Partitions:     4,
			PollInterval:   time.Second,
			RetryDelay:     2 * time.Second,
			MaxSoftRetries: 5,
		},
		Resolver: ResolverSettings{
			VariantPolicy: VariantPolicyDefer,
		},
		Search: SearchSettings{
			Mode:          SearchModeSemantic,
			Lambda:        DefaultMMRLambda,
			Limit:         DefaultSearchLimit,
			CandidatePool: DefaultCandidatePool,
		},
	}
}

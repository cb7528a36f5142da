// Package app wires adapters and core services into a running instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/claimminer/internal/adapters/driven/ai"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/auth"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/blob/badger"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/blob/fs"
	blobmemory "github.com/custodia-labs/claimminer/internal/adapters/driven/blob/memory"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/config/collections"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/config/file"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/fetch/web"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/language/lingua"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/claimminer/internal/adapters/driven/vector/pgvector"
	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/core/services"
	"github.com/custodia-labs/claimminer/internal/extractors"
	"github.com/custodia-labs/claimminer/internal/logger"
	"github.com/custodia-labs/claimminer/internal/postprocessors"
)

// Options controls how an App is assembled.
type Options struct {
	// ConfigDir holds config.toml and .env. Empty means ~/.claimminer.
	ConfigDir string

	// Config replaces the file config store when set.
	Config driven.ConfigStore

	// DataDir overrides storage.data_dir.
	DataDir string

	// Ephemeral keeps blobs and messages in memory and the database in a
	// temporary directory removed by Close.
	Ephemeral bool

	// Detector replaces the lingua language detector when set.
	Detector driven.LanguageDetector
}

// App exposes the driving ports of a fully wired instance.
type App struct {
	Settings        *domain.AppSettings
	SettingsService driving.SettingsService
	Resolver        driving.URIResolver
	Ingest          driving.IngestService
	Documents       driving.DocumentService
	Search          driving.SearchService
	Embed           driving.EmbedService
	Fetch           driving.FetchService
	Extract         driving.ExtractService
	Dispatcher      driving.Dispatcher
	Scheduler       driving.Scheduler
	Metrics         *prometheus.Metrics

	// Warnings lists models that could not be created.
	Warnings []string

	closers []func() error
}

// New builds an App from configuration. Callers must Close it.
//
//nolint:gocyclo // Linear wiring of every adapter
func New(ctx context.Context, opts Options) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	config := opts.Config
	if config == nil {
		fileConfig, err := file.NewConfigStore(opts.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		config = fileConfig
	}

	settingsService := services.NewSettingsService(config, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if opts.DataDir != "" {
		settings.Storage.DataDir = opts.DataDir
	}
	a.Settings = settings
	a.SettingsService = settingsService

	dataDir := settings.Storage.DataDir
	if opts.Ephemeral {
		dataDir, err = os.MkdirTemp("", "claimminer-")
		if err != nil {
			return nil, fmt.Errorf("creating temporary data directory: %w", err)
		}
		tmp := dataDir
		a.closers = append(a.closers, func() error { return os.RemoveAll(tmp) })
		settings.Storage.CASBackend = domain.CASBackendMemory
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	logger.Debug("database at %s", store.Path())

	blobs, err := openBlobStore(settings.Storage, filepath.Dir(store.Path()))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, blobs.Close)

	vectors, err := openVectorStore(ctx, settings.Storage, store)
	if err != nil {
		return nil, err
	}
	if settings.Storage.VectorBackend == domain.VectorBackendPGVector {
		a.closers = append(a.closers, vectors.Close)
	}

	var messages driven.MessageLog = store.MessageLog()
	if opts.Ephemeral {
		messages = memory.NewMessageLog()
	}

	collectionResolver := collections.NewResolver(config)
	models := services.NewModelRegistry(settings.Embedding.BaseModel, collectionResolver)
	created, err := ai.CreateModels(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	for _, m := range created.Models {
		models.Register(m.Name, m.Service)
	}
	a.closers = append(a.closers, models.Close)
	a.Warnings = created.Warnings
	for _, w := range created.Warnings {
		logger.Warn("%s", w)
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := postprocessors.FromSettings(registry, settings.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("building paragraph pipeline: %w", err)
	}

	detector := opts.Detector
	if detector == nil {
		detector = lingua.NewDetector()
	}

	metrics := prometheus.New()
	a.Metrics = metrics

	analyzers := services.NewAnalyzerCache(store.AnalyzerStore())
	dispatcher := services.NewDispatcher(messages, settings.Dispatcher, metrics)
	resolver := services.NewResolver(store.URIStore(), settings.Resolver.VariantPolicy)

	fetcher := web.NewFetcher(web.Config{
		Timeout:   settings.Pipeline.FetchTimeout,
		UserAgent: settings.Pipeline.UserAgent,
	})
	fetch := services.NewFetchService(store.DocumentStore(), blobs, vectors, fetcher, settings.Pipeline.DedupMinSize)
	extract := services.NewExtractService(
		store.DocumentStore(), blobs, vectors, analyzers,
		extractors.Defaults(), pipeline, detector, settings.Pipeline.ExtractWorkers,
	)
	embed := services.NewEmbeddingService(
		models, store.DocumentStore(), blobs, vectors, analyzers, settings.Embedding.MaxSize, metrics,
	)

	router := services.NewRouter(dispatcher, fetch, extract, embed, models, metrics)
	router.Register(dispatcher)

	a.Resolver = resolver
	a.Fetch = fetch
	a.Extract = extract
	a.Embed = embed
	a.Dispatcher = dispatcher
	a.Ingest = services.NewIngestService(
		auth.NewAuthorizer(settings.Auth), collectionResolver, resolver,
		store.DocumentStore(), blobs, vectors, dispatcher, settings.Pipeline.DedupMinSize,
	)
	a.Documents = services.NewDocumentService(store.DocumentStore(), store.URIStore(), blobs, dispatcher)
	a.Search = services.NewSearchService(embed, models, vectors, store.DocumentStore(), metrics)
	a.Scheduler = services.NewScheduler(
		settingsService.GetSchedulerConfig(), store.SchedulerStore(), embed, messages,
		domain.BatchOptions{BatchSize: domain.DefaultBatchSize, MaxSize: settings.Embedding.MaxSize},
	)

	ok = true
	return a, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openBlobStore(s domain.StorageSettings, dataDir string) (driven.BlobStore, error) {
	switch s.CASBackend {
	case domain.CASBackendMemory:
		return blobmemory.New(), nil
	case domain.CASBackendBadger:
		store, err := badger.NewStore(filepath.Join(dataDir, "badger"))
		if err != nil {
			return nil, fmt.Errorf("opening badger blob store: %w", err)
		}
		return store, nil
	case domain.CASBackendFS, "":
		store, err := fs.New(filepath.Join(dataDir, "blobs"))
		if err != nil {
			return nil, fmt.Errorf("opening blob directory: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown cas backend %q", domain.ErrInvalidInput, s.CASBackend)
	}
}

func openVectorStore(ctx context.Context, s domain.StorageSettings, store *sqlite.Store) (driven.VectorStore, error) {
	switch s.VectorBackend {
	case domain.VectorBackendSQLite, "":
		return store.VectorStore(), nil
	case domain.VectorBackendPGVector:
		if s.PostgresDSN == "" {
			return nil, fmt.Errorf("%w: vector.postgres_dsn is required for pgvector", domain.ErrInvalidInput)
		}
		vectors, err := pgvector.New(ctx, pgvector.Config{ConnectionString: s.PostgresDSN})
		if err != nil {
			return nil, fmt.Errorf("connecting to pgvector: %w", err)
		}
		return vectors, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, s.VectorBackend)
	}
}

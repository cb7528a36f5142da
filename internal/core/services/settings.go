package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir       = "storage.data_dir"
	keyCASBackend    = "cas.backend"
	keyVectorBackend = "vector.backend"
	keyPostgresDSN   = "vector.postgres_dsn"

	keyBaseModel       = "embedding.base_model"
	keyEmbedAPIKey     = "embedding.api_key"
	keyRetryInterval   = "embedding.retry_interval"
	keyMaxRetries      = "embedding.max_retries"
	keyEmbedMaxSize    = "embedding.max_size"
	modelsPrefix       = "models."
	collectionsPrefix  = "collections."
	collectionEmbedKey = ".embeddings"

	keyMinParagraph = "pipeline.min_paragraph_length"
	keyMaxParagraph = "pipeline.max_paragraph_length"
	keyDedupMinSize = "pipeline.dedup_min_size"
	keyWorkers      = "pipeline.extract_workers"
	keyFetchTimeout = "pipeline.fetch_timeout"
	keyUserAgent    = "pipeline.user_agent"

	keyPartitions     = "dispatcher.partitions"
	keyPollInterval   = "dispatcher.poll_interval"
	keyRetryDelay     = "dispatcher.retry_delay"
	keyMaxSoftRetries = "dispatcher.max_soft_retries"

	keyVariantPolicy = "resolver.variant_policy"

	keySearchMode    = "search.mode"
	keySearchLambda  = "search.lambda"
	keySearchLimit   = "search.limit"
	keyCandidatePool = "search.candidate_pool"

	keyPrincipals  = "auth.principals"
	keyMetricsAddr = "metrics.addr"
)

// SettingsService maps flat config keys to typed application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
// aiValidator may be nil, in which case provider checks are skipped.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Storage: domain.StorageSettings{
			DataDir:       s.configStore.GetString(keyDataDir),
			CASBackend:    domain.CASBackend(s.getString(keyCASBackend, string(d.Storage.CASBackend))),
			VectorBackend: domain.VectorBackend(s.getString(keyVectorBackend, string(d.Storage.VectorBackend))),
			PostgresDSN:   s.configStore.GetString(keyPostgresDSN),
		},
		Embedding: domain.EmbeddingSettings{
			BaseModel:        s.getString(keyBaseModel, d.Embedding.BaseModel),
			Models:           s.getModels(d.Embedding.Models),
			CollectionModels: s.getCollectionModels(),
			RetryInterval:    s.getDuration(keyRetryInterval, d.Embedding.RetryInterval),
			MaxRetries:       s.getInt(keyMaxRetries, d.Embedding.MaxRetries),
			MaxSize:          s.getInt(keyEmbedMaxSize, d.Embedding.MaxSize),
		},
		Pipeline: domain.PipelineSettings{
			MinParagraphLength: s.getInt(keyMinParagraph, d.Pipeline.MinParagraphLength),
			MaxParagraphLength: s.getInt(keyMaxParagraph, d.Pipeline.MaxParagraphLength),
			DedupMinSize:       int64(s.getInt(keyDedupMinSize, int(d.Pipeline.DedupMinSize))),
			ExtractWorkers:     s.getInt(keyWorkers, d.Pipeline.ExtractWorkers),
			FetchTimeout:       s.getDuration(keyFetchTimeout, d.Pipeline.FetchTimeout),
			UserAgent:          s.getString(keyUserAgent, d.Pipeline.UserAgent),
		},
		Dispatcher: domain.DispatcherSettings{
			Partitions:     s.getInt(keyPartitions, d.Dispatcher.Partitions),
			PollInterval:   s.getDuration(keyPollInterval, d.Dispatcher.PollInterval),
			RetryDelay:     s.getDuration(keyRetryDelay, d.Dispatcher.RetryDelay),
			MaxSoftRetries: s.getInt(keyMaxSoftRetries, d.Dispatcher.MaxSoftRetries),
		},
		Resolver: domain.ResolverSettings{
			VariantPolicy: s.getVariantPolicy(d.Resolver.VariantPolicy),
		},
		Search: domain.SearchSettings{
			Mode:          s.getSearchMode(d.Search.Mode),
			Lambda:        s.getFloat(keySearchLambda, d.Search.Lambda),
			Limit:         s.getInt(keySearchLimit, d.Search.Limit),
			CandidatePool: s.getInt(keyCandidatePool, d.Search.CandidatePool),
		},
		Auth: domain.AuthSettings{
			Principals: s.configStore.GetStringSlice(keyPrincipals),
		},
		Metrics: domain.MetricsSettings{
			Addr: s.configStore.GetString(keyMetricsAddr),
		},
	}

	return settings, nil
}

// Save persists application settings. API keys are only written when set,
// so keys supplied through the environment never reach the file.
//
//nolint:gocyclo // One write per setting
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyCASBackend, string(settings.Storage.CASBackend)},
		{keyVectorBackend, string(settings.Storage.VectorBackend)},
		{keyBaseModel, settings.Embedding.BaseModel},
		{keyRetryInterval, settings.Embedding.RetryInterval.String()},
		{keyMaxRetries, settings.Embedding.MaxRetries},
		{keyEmbedMaxSize, settings.Embedding.MaxSize},
		{keyMinParagraph, settings.Pipeline.MinParagraphLength},
		{keyMaxParagraph, settings.Pipeline.MaxParagraphLength},
		{keyDedupMinSize, settings.Pipeline.DedupMinSize},
		{keyWorkers, settings.Pipeline.ExtractWorkers},
		{keyFetchTimeout, settings.Pipeline.FetchTimeout.String()},
		{keyUserAgent, settings.Pipeline.UserAgent},
		{keyPartitions, settings.Dispatcher.Partitions},
		{keyPollInterval, settings.Dispatcher.PollInterval.String()},
		{keyRetryDelay, settings.Dispatcher.RetryDelay.String()},
		{keyMaxSoftRetries, settings.Dispatcher.MaxSoftRetries},
		{keyVariantPolicy, string(settings.Resolver.VariantPolicy)},
		{keySearchMode, settings.Search.Mode.String()},
		{keySearchLambda, settings.Search.Lambda},
		{keySearchLimit, settings.Search.Limit},
		{keyCandidatePool, settings.Search.CandidatePool},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	optional := map[string]string{
		keyDataDir:     settings.Storage.DataDir,
		keyPostgresDSN: settings.Storage.PostgresDSN,
		keyMetricsAddr: settings.Metrics.Addr,
	}
	for key, value := range optional {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	if len(settings.Auth.Principals) > 0 {
		if err := s.configStore.Set(keyPrincipals, settings.Auth.Principals); err != nil {
			return fmt.Errorf("save %s: %w", keyPrincipals, err)
		}
	}

	for _, m := range settings.Embedding.Models {
		if err := s.saveModel(m); err != nil {
			return err
		}
	}
	for collection, models := range settings.Embedding.CollectionModels {
		key := collectionsPrefix + collection + collectionEmbedKey
		if err := s.configStore.Set(key, models); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return nil
}

// SetSearchMode updates the search mode.
func (s *SettingsService) SetSearchMode(mode domain.SearchMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: search mode %q", domain.ErrInvalidInput, mode)
	}
	if err := s.configStore.Set(keySearchMode, mode.String()); err != nil {
		return fmt.Errorf("save search mode: %w", err)
	}
	return nil
}

// SetModel adds or replaces an embedding model.
func (s *SettingsService) SetModel(model domain.ModelSettings) error {
	if model.Name == "" || strings.Contains(model.Name, ".") {
		return fmt.Errorf("%w: model name %q", domain.ErrInvalidInput, model.Name)
	}
	if !model.Provider.IsValid() {
		return fmt.Errorf("%w: provider %q", domain.ErrInvalidInput, model.Provider)
	}
	return s.saveModel(model)
}

// SetBaseModel selects the base model. The model must be configured.
func (s *SettingsService) SetBaseModel(name string) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if _, ok := settings.Embedding.Model(name); !ok {
		return fmt.Errorf("model %s: %w", name, domain.ErrNotFound)
	}
	if err := s.configStore.Set(keyBaseModel, name); err != nil {
		return fmt.Errorf("save base model: %w", err)
	}
	return nil
}

// Validate checks that current settings are consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Storage.CASBackend.IsValid() {
		return fmt.Errorf("%w: cas backend %q", domain.ErrInvalidInput, settings.Storage.CASBackend)
	}
	if !settings.Storage.VectorBackend.IsValid() {
		return fmt.Errorf("%w: vector backend %q", domain.ErrInvalidInput, settings.Storage.VectorBackend)
	}
	if settings.Storage.VectorBackend == domain.VectorBackendPGVector && settings.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: %s is required for the pgvector backend", domain.ErrInvalidInput, keyPostgresDSN)
	}

	base, ok := settings.Embedding.Model(settings.Embedding.BaseModel)
	if !ok {
		return fmt.Errorf("%w: base model %s is not configured", domain.ErrInvalidInput, settings.Embedding.BaseModel)
	}
	if !base.IsConfigured() {
		return fmt.Errorf("%w: base model %s needs a provider and, for %s, an API key",
			domain.ErrInvalidInput, base.Name, domain.AIProviderOpenAI)
	}

	for collection, models := range settings.Embedding.CollectionModels {
		for _, m := range models {
			if _, ok := settings.Embedding.Model(m); !ok {
				return fmt.Errorf("%w: collection %s uses unknown model %s", domain.ErrInvalidInput, collection, m)
			}
		}
	}

	if settings.Search.Lambda < 0 || settings.Search.Lambda > 1 {
		return fmt.Errorf("%w: search lambda must be within [0,1]", domain.ErrInvalidInput)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the embedding configuration by pinging the providers.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get("scheduler.enabled"); exists {
		defaults.Enabled = s.configStore.GetBool("scheduler.enabled")
	}

	// Map from task ID to config key (underscore version for TOML)
	taskKeys := map[string]string{
		domain.TaskIDBatchEmbed:    "batch_embed",
		domain.TaskIDPruneMessages: "prune_messages",
	}

	for taskID, configKey := range taskKeys {
		prefix := "scheduler." + configKey + "."

		taskCfg := defaults.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}

		// Duration string like "45m", "1h"
		taskCfg.Interval = s.getDuration(prefix+"interval", taskCfg.Interval)

		defaults.TaskConfigs[taskID] = taskCfg
	}

	return defaults
}

func (s *SettingsService) saveModel(m domain.ModelSettings) error {
	prefix := modelsPrefix + m.Name + "."
	values := map[string]any{
		"provider": m.Provider.String(),
		"model":    m.Model,
	}
	if m.BaseURL != "" {
		values["base_url"] = m.BaseURL
	}
	if m.APIKey != "" {
		values["api_key"] = m.APIKey
	}
	if m.Dimensions > 0 {
		values["dimensions"] = m.Dimensions
	}
	if m.RequestsPerMinute > 0 {
		values["requests_per_minute"] = m.RequestsPerMinute
	}
	for key, value := range values {
		if err := s.configStore.Set(prefix+key, value); err != nil {
			return fmt.Errorf("save model %s %s: %w", m.Name, key, err)
		}
	}
	return nil
}

// getModels reads models.<name>.* tables. Without any, the defaults apply.
// Models without their own API key use embedding.api_key.
func (s *SettingsService) getModels(defaults []domain.ModelSettings) []domain.ModelSettings {
	names := s.subKeys(modelsPrefix)
	if len(names) == 0 {
		return defaults
	}

	sharedKey := s.configStore.GetString(keyEmbedAPIKey)
	models := make([]domain.ModelSettings, 0, len(names))
	for _, name := range names {
		prefix := modelsPrefix + name + "."
		m := domain.ModelSettings{
			Name:              name,
			Provider:          domain.AIProvider(s.configStore.GetString(prefix + "provider")),
			Model:             s.configStore.GetString(prefix + "model"),
			BaseURL:           s.configStore.GetString(prefix + "base_url"),
			APIKey:            s.configStore.GetString(prefix + "api_key"),
			Dimensions:        s.configStore.GetInt(prefix + "dimensions"),
			RequestsPerMinute: s.configStore.GetInt(prefix + "requests_per_minute"),
		}
		if m.APIKey == "" && m.Provider.RequiresAPIKey() {
			m.APIKey = sharedKey
		}
		models = append(models, m)
	}
	return models
}

// getCollectionModels reads collections.<name>.embeddings lists.
func (s *SettingsService) getCollectionModels() map[string][]string {
	out := make(map[string][]string)
	for _, name := range s.subKeys(collectionsPrefix) {
		if models := s.configStore.GetStringSlice(collectionsPrefix + name + collectionEmbedKey); len(models) > 0 {
			out[name] = models
		}
	}
	return out
}

// subKeys returns the sorted distinct names directly below prefix.
func (s *SettingsService) subKeys(prefix string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, key := range s.configStore.Keys(prefix) {
		name, _, ok := strings.Cut(strings.TrimPrefix(key, prefix), ".")
		if !ok || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); exists {
		return s.configStore.GetInt(key)
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		return f
	default:
		return defaultVal
	}
}

// getDuration reads a duration string such as "20s". Bare integers are
// seconds.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case int64:
		return time.Duration(v) * time.Second
	case int:
		return time.Duration(v) * time.Second
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultVal
}

func (s *SettingsService) getSearchMode(defaultVal domain.SearchMode) domain.SearchMode {
	mode := domain.SearchMode(s.configStore.GetString(keySearchMode))
	if mode.IsValid() {
		return mode
	}
	return defaultVal
}

func (s *SettingsService) getVariantPolicy(defaultVal domain.VariantPolicy) domain.VariantPolicy {
	policy := domain.VariantPolicy(s.configStore.GetString(keyVariantPolicy))
	if policy.IsValid() {
		return policy
	}
	return defaultVal
}

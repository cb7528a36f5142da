package driving

import "github.com/custodia-labs/claimminer/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, defaults applied.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetSearchMode updates the default search mode.
	SetSearchMode(mode domain.SearchMode) error

	// SetModel adds or replaces an embedding model.
	SetModel(model domain.ModelSettings) error

	// SetBaseModel selects the model embedded for every fragment.
	SetBaseModel(name string) error

	// Validate checks that current settings are consistent.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// GetSchedulerConfig returns the background task configuration.
	GetSchedulerConfig() domain.SchedulerConfig

	// ValidateEmbeddingConfig pings every configured embedding provider.
	ValidateEmbeddingConfig() error
}

// Package ai provides factory functions for creating embedding service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/claimminer/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/claimminer/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Model is a named embedding service ready for registration.
type Model struct {
	Name    string
	Service driven.EmbeddingService
}

// InitResult contains the result of embedding service initialisation.
type InitResult struct {
	Models   []Model
	Warnings []string // Non-fatal issues; the affected models are left out.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	for _, m := range r.Models {
		m.Service.Close()
	}
}

// CreateModels creates a service for every configured model. Models that
// cannot be created are reported as warnings, except the base model,
// whose failure is an error.
func CreateModels(settings *domain.EmbeddingSettings) (*InitResult, error) {
	result := &InitResult{}
	if settings == nil {
		return result, nil
	}

	for _, m := range settings.Models {
		svc, err := CreateEmbeddingService(m, settings)
		if err == nil && svc == nil {
			err = fmt.Errorf("provider %q is not configured", m.Provider)
		}
		if err != nil {
			if m.Name == settings.BaseModel {
				result.Close()
				return nil, fmt.Errorf("%w: base model %s: %w", domain.ErrEmbeddingUnavailable, m.Name, err)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("model %s: %v", m.Name, err))
			continue
		}
		result.Models = append(result.Models, Model{Name: m.Name, Service: svc})
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(
	model domain.ModelSettings, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(model, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Check [embedding] in config.toml",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w). Check [embedding] in config.toml",
			domain.ErrEmbeddingUnavailable, model.Name, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig creates a service for every configured model and
// pings it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil {
		return nil
	}

	for _, m := range settings.Models {
		if !m.IsConfigured() {
			continue
		}
		svc, err := CreateAndValidateEmbeddingService(m, settings)
		if err != nil {
			return err
		}
		if svc != nil {
			svc.Close()
		}
	}
	return nil
}

// CreateEmbeddingService creates the embedding service for one model.
// Retry settings come from the shared embedding settings. Returns nil if
// the model is not configured.
func CreateEmbeddingService(
	model domain.ModelSettings, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	if !model.IsConfigured() {
		return nil, nil
	}

	switch model.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(model), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(model, settings)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", model.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(model domain.ModelSettings) driven.EmbeddingService {
	dimensions := model.Dimensions
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    model.BaseURL,
		Model:      model.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(
	model domain.ModelSettings, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	cfg := openaiembed.Config{
		APIKey:            model.APIKey,
		BaseURL:           model.BaseURL,
		Model:             model.Model,
		Dimensions:        model.Dimensions,
		RequestsPerMinute: model.RequestsPerMinute,
	}
	if settings != nil {
		cfg.RetryInterval = settings.RetryInterval
		cfg.MaxRetries = settings.MaxRetries
	}
	return openaiembed.NewEmbeddingService(cfg)
}

package postprocessors

import (
	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/postprocessors/maxlength"
	"github.com/custodia-labs/claimminer/internal/postprocessors/minlength"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("minlength", buildMinLength)
	r.Register("maxlength", buildMaxLength)
}

// FromSettings builds the paragraph pipeline used by extraction:
// minlength then maxlength.
func FromSettings(r *Registry, s domain.PipelineSettings) (*Pipeline, error) {
	minProc, err := r.Build("minlength", map[string]any{"min_length": s.MinParagraphLength})
	if err != nil {
		return nil, err
	}
	maxProc, err := r.Build("maxlength", map[string]any{"max_length": s.MaxParagraphLength})
	if err != nil {
		return nil, err
	}
	return NewPipeline(minProc, maxProc), nil
}

// buildMinLength creates a minlength processor from generic config.
// Supported config keys:
//   - min_length (int): Minimum paragraph runes (default: 120)
func buildMinLength(cfg map[string]any) (driven.PostProcessor, error) {
	n := minlength.DefaultMinLength
	if _, ok := cfg["min_length"]; ok {
		n = getIntFromConfig(cfg, "min_length")
	}
	return minlength.New(n), nil
}

// buildMaxLength creates a maxlength processor from generic config.
// Supported config keys:
//   - max_length (int): Maximum paragraph runes, 0 disables (default: 0)
func buildMaxLength(cfg map[string]any) (driven.PostProcessor, error) {
	return maxlength.New(getIntFromConfig(cfg, "max_length")), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

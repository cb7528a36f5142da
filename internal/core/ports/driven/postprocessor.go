package driven

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// PostProcessor filters or rewrites extracted paragraphs.
// PostProcessors are chained in a pipeline (e.g., minimum length, maximum length).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives positioned paragraphs and returns the ones to keep.
	// Positions and character offsets must be preserved.
	Process(ctx context.Context, paras []domain.Paragraph) ([]domain.Paragraph, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the paragraphs through all processors in order.
	Process(ctx context.Context, paras []domain.Paragraph) ([]domain.Paragraph, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// EmbedService computes and stores embeddings.
type EmbedService interface {
	// Embed returns one normalized vector per text for a model.
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)

	// HandleEmbedMessage embeds the target named by an embed payload.
	HandleEmbedMessage(ctx context.Context, payload string) error

	// BatchEmbed backfills missing embeddings.
	BatchEmbed(ctx context.Context, opts domain.BatchOptions) (*domain.BatchResult, error)
}

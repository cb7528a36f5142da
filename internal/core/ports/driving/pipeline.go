package driving

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// FetchService runs the download stage for one document.
type FetchService interface {
	Fetch(ctx context.Context, docID int64, params map[string]any) (*domain.FetchOutcome, error)
}

// ExtractService runs the extraction stage for one document.
type ExtractService interface {
	Extract(ctx context.Context, docID int64, kind domain.ExtractorKind, params map[string]any) (*domain.ExtractOutcome, error)
}

// Handler consumes one message. Returning an error wrapping
// domain.ErrNotYetVisible requests a delayed redelivery.
type Handler func(ctx context.Context, msg domain.Message) error

// Enqueuer publishes messages for later handling.
type Enqueuer interface {
	// Enqueue assigns partitions and publishes messages.
	Enqueue(ctx context.Context, msgs ...domain.Message) error
}

// Dispatcher routes messages from the log to topic handlers.
type Dispatcher interface {
	Enqueuer

	// Register installs the handler for a topic.
	Register(topic domain.Topic, h Handler)

	// Start consumes until Stop is called or ctx is cancelled.
	Start(ctx context.Context) error

	// Stop stops consumption and waits for in-flight messages.
	Stop() error
}

package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// MessageLog is a partitioned, at-least-once message log.
type MessageLog interface {
	// Publish appends messages. IDs and creation times are assigned here;
	// partitions must already be set.
	Publish(ctx context.Context, msgs ...domain.Message) error

	// Next returns the oldest unacknowledged message of a partition.
	// Returns nil and no error when the partition is empty.
	Next(ctx context.Context, topic domain.Topic, partition int) (*domain.Message, error)

	// Ack marks a message as done.
	Ack(ctx context.Context, id string) error

	// Retry increments the attempt counter of a message, leaving it
	// unacknowledged.
	Retry(ctx context.Context, id string) error

	// Pending counts unacknowledged messages of a topic.
	Pending(ctx context.Context, topic domain.Topic) (int, error)

	// Prune deletes acknowledged messages created before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}

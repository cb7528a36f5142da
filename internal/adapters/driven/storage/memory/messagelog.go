package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure MessageLog implements the interface.
var _ driven.MessageLog = (*MessageLog)(nil)

type entry struct {
	msg   domain.Message
	acked bool
}

// MessageLog is an in-memory implementation of driven.MessageLog.
// Messages are lost when the process exits.
type MessageLog struct {
	mu      sync.Mutex
	entries []*entry
	byID    map[string]*entry
	now     func() time.Time
}

// NewMessageLog creates an empty in-memory message log.
func NewMessageLog() *MessageLog {
	return &MessageLog{
		byID: make(map[string]*entry),
		now:  time.Now,
	}
}

// Publish appends messages in order.
func (l *MessageLog) Publish(_ context.Context, msgs ...domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range msgs {
		if !m.Topic.IsValid() {
			return domain.ErrInvalidInput
		}
		m.ID = uuid.New().String()
		m.CreatedAt = l.now()
		e := &entry{msg: m}
		l.entries = append(l.entries, e)
		l.byID[m.ID] = e
	}
	return nil
}

// Next returns the oldest unacknowledged message of a partition.
func (l *MessageLog) Next(_ context.Context, topic domain.Topic, partition int) (*domain.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.acked || e.msg.Topic != topic || e.msg.Partition != partition {
			continue
		}
		msg := e.msg
		return &msg, nil
	}
	return nil, nil
}

// Ack marks a message as done.
func (l *MessageLog) Ack(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.acked = true
	return nil
}

// Retry increments the attempt counter of a message.
func (l *MessageLog) Retry(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.msg.Attempts++
	return nil
}

// Pending counts unacknowledged messages of a topic.
func (l *MessageLog) Pending(_ context.Context, topic domain.Topic) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if !e.acked && e.msg.Topic == topic {
			n++
		}
	}
	return n, nil
}

// Prune drops acknowledged messages created before the cutoff.
func (l *MessageLog) Prune(_ context.Context, before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.acked && e.msg.CreatedAt.Before(before) {
			delete(l.byID, e.msg.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// messageTimeLayout sorts lexically, unlike RFC3339Nano.
const messageTimeLayout = "2006-01-02T15:04:05.000000000Z"

// messageLog implements driven.MessageLog over the messages table.
type messageLog struct {
	store *Store
	now   func() time.Time
}

var _ driven.MessageLog = (*messageLog)(nil)

// Publish appends messages in one transaction.
func (l *messageLog) Publish(ctx context.Context, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	for _, m := range msgs {
		if !m.Topic.IsValid() {
			return fmt.Errorf("%w: topic %q", domain.ErrInvalidInput, m.Topic)
		}
	}

	created := l.now().UTC().Format(messageTimeLayout)
	return l.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range msgs {
			params, err := marshalMap(m.Params)
			if err != nil {
				return fmt.Errorf("marshalling message params: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO messages (topic, part, msg_key, payload, params, attempts, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, string(m.Topic), m.Partition, m.Key, m.Payload, params, m.Attempts, created); err != nil {
				return fmt.Errorf("publishing message: %w", err)
			}
		}
		return nil
	})
}

// Next returns the oldest unacknowledged message of a partition, or nil.
func (l *messageLog) Next(ctx context.Context, topic domain.Topic, partition int) (*domain.Message, error) {
	var m domain.Message
	var id int64
	var topicName, created string
	var params sql.NullString

	err := l.store.db.QueryRowContext(ctx, `
		SELECT id, topic, part, msg_key, payload, params, attempts, created_at
		FROM messages
		WHERE topic = ? AND part = ? AND acked_at IS NULL
		ORDER BY id LIMIT 1
	`, string(topic), partition).Scan(&id, &topicName, &m.Partition, &m.Key, &m.Payload,
		&params, &m.Attempts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading next message: %w", err)
	}

	m.ID = strconv.FormatInt(id, 10)
	m.Topic = domain.Topic(topicName)
	if t, err := time.Parse(messageTimeLayout, created); err == nil {
		m.CreatedAt = t
	}
	if m.Params, err = unmarshalMap(params); err != nil {
		return nil, fmt.Errorf("unmarshalling message params: %w", err)
	}
	return &m, nil
}

// Ack marks a message as done.
func (l *messageLog) Ack(ctx context.Context, id string) error {
	return l.update(ctx, id, `UPDATE messages SET acked_at = ? WHERE id = ?`,
		l.now().UTC().Format(messageTimeLayout))
}

// Retry increments the attempt counter of a message.
func (l *messageLog) Retry(ctx context.Context, id string) error {
	return l.update(ctx, id, `UPDATE messages SET attempts = attempts + 1 WHERE id = ?`)
}

// Pending counts unacknowledged messages of a topic.
func (l *messageLog) Pending(ctx context.Context, topic domain.Topic) (int, error) {
	var n int
	if err := l.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE topic = ? AND acked_at IS NULL`,
		string(topic)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending messages: %w", err)
	}
	return n, nil
}

// Prune deletes acknowledged messages created before the cutoff.
func (l *messageLog) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := l.store.db.ExecContext(ctx,
		`DELETE FROM messages WHERE acked_at IS NOT NULL AND created_at < ?`,
		before.UTC().Format(messageTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned messages: %w", err)
	}
	return int(n), nil
}

func (l *messageLog) update(ctx context.Context, id, query string, args ...any) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: message id %q", domain.ErrInvalidInput, id)
	}
	res, err := l.store.db.ExecContext(ctx, query, append(args, n)...)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

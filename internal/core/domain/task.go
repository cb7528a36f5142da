package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Topic names a dispatcher message stream.
type Topic string

// Dispatcher topics.
const (
	TopicDownload     Topic = "download"
	TopicProcessHTML  Topic = "process_html"
	TopicProcessPDF   Topic = "process_pdf"
	TopicProcessText  Topic = "process_text"
	TopicEmbed        Topic = "embed"
	TopicExternalSync Topic = "external-sync"
)

// AllTopics lists every dispatcher topic.
func AllTopics() []Topic {
	return []Topic{
		TopicDownload, TopicProcessHTML, TopicProcessPDF, TopicProcessText,
		TopicEmbed, TopicExternalSync,
	}
}

// IsValid returns true if the topic is recognised.
func (t Topic) IsValid() bool {
	for _, known := range AllTopics() {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (t Topic) String() string {
	return string(t)
}

// Message is a unit of work on a topic.
// Delivery is at-least-once; handlers must be idempotent.
type Message struct {
	// ID is assigned by the message log.
	ID string

	// Topic is the stream this message belongs to.
	Topic Topic

	// Partition is derived from Key by the dispatcher.
	Partition int

	// Key orders messages: equal keys land in the same partition.
	Key string

	// Payload is the topic-specific body.
	Payload string

	// Params are optional stage parameters (extraction options, refetch).
	Params map[string]any

	// Attempts counts soft-miss retries.
	Attempts int

	// CreatedAt is when the message was published.
	CreatedAt time.Time
}

// NewDocumentMessage builds a message whose payload is a document ID.
// Used for download and process_* topics.
func NewDocumentMessage(topic Topic, docID int64, params map[string]any) Message {
	id := strconv.FormatInt(docID, 10)
	return Message{Topic: topic, Key: id, Payload: id, Params: params}
}

// DocumentIDFromPayload parses a document ID payload.
func DocumentIDFromPayload(payload string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: document payload %q", ErrInvalidInput, payload)
	}
	return id, nil
}

// EmbeddingTargetKind distinguishes document and fragment embeddings.
type EmbeddingTargetKind byte

// Embedding target kinds; the byte is the payload prefix.
const (
	TargetDocument EmbeddingTargetKind = 'D'
	TargetFragment EmbeddingTargetKind = 'F'
)

// EmbeddingTarget identifies what an embedding belongs to.
type EmbeddingTarget struct {
	Kind EmbeddingTargetKind
	ID   int64
}

// DocumentTarget returns the target for a document.
func DocumentTarget(id int64) EmbeddingTarget {
	return EmbeddingTarget{Kind: TargetDocument, ID: id}
}

// FragmentTarget returns the target for a fragment.
func FragmentTarget(id int64) EmbeddingTarget {
	return EmbeddingTarget{Kind: TargetFragment, ID: id}
}

// String renders the target as "D<id>" or "F<id>".
func (t EmbeddingTarget) String() string {
	return string(t.Kind) + strconv.FormatInt(t.ID, 10)
}

// NewEmbedMessage builds an embed message. An empty model means the base model.
func NewEmbedMessage(target EmbeddingTarget, model string) Message {
	payload := target.String()
	if model != "" {
		payload += " " + model
	}
	return Message{Topic: TopicEmbed, Key: target.String(), Payload: payload}
}

// ParseEmbedPayload parses "D<id>" or "F<id>", optionally followed by a
// space and a model name.
func ParseEmbedPayload(payload string) (EmbeddingTarget, string, error) {
	fields := strings.Fields(payload)
	if len(fields) == 0 || len(fields) > 2 {
		return EmbeddingTarget{}, "", fmt.Errorf("%w: embed payload %q", ErrInvalidInput, payload)
	}

	head := fields[0]
	if len(head) < 2 {
		return EmbeddingTarget{}, "", fmt.Errorf("%w: embed payload %q", ErrInvalidInput, payload)
	}
	kind := EmbeddingTargetKind(head[0])
	if kind != TargetDocument && kind != TargetFragment {
		return EmbeddingTarget{}, "", fmt.Errorf("%w: embed target kind %q", ErrInvalidInput, head[:1])
	}
	id, err := strconv.ParseInt(head[1:], 10, 64)
	if err != nil || id <= 0 {
		return EmbeddingTarget{}, "", fmt.Errorf("%w: embed target id %q", ErrInvalidInput, head[1:])
	}

	model := ""
	if len(fields) == 2 {
		model = fields[1]
	}
	return EmbeddingTarget{Kind: kind, ID: id}, model, nil
}

// Stage parameters understood by the pipeline.
const (
	// ParamRefetch downloads again even when content is stored.
	ParamRefetch = "refetch"

	// ParamReparse extracts again even when the content is unchanged.
	ParamReparse = "reparse"
)

// ParamBool reads a boolean stage parameter.
func ParamBool(params map[string]any, key string) bool {
	v, ok := params[key]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		return err == nil && parsed
	default:
		return false
	}
}

// WithoutKeys returns a copy of params minus the given keys.
// Returns nil when nothing is left.
func WithoutKeys(params map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

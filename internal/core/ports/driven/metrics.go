package driven

import "time"

// Metrics records pipeline activity.
type Metrics interface {
	// MessageHandled records one dispatched message and its outcome
	// ("ok", "retry", "error").
	MessageHandled(topic, outcome string, elapsed time.Duration)

	// StageOutcome records the outcome of a pipeline stage.
	StageOutcome(stage, outcome string)

	// EmbeddingsComputed records vectors produced by a model.
	EmbeddingsComputed(model string, n int)

	// SearchServed records one query.
	SearchServed(mode string, elapsed time.Duration)
}

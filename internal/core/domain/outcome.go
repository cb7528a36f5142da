package domain

import "time"

// FetchStatus is the result of the download stage.
type FetchStatus string

// Fetch stage results.
const (
	// FetchSkipped means the document already had content.
	FetchSkipped FetchStatus = "skipped"

	// FetchFailed means the download produced no usable content.
	// The return code is recorded on the document.
	FetchFailed FetchStatus = "failed"

	// FetchUnchanged means the content key did not change.
	FetchUnchanged FetchStatus = "unchanged"

	// FetchMerged means the content duplicated another document, which
	// absorbed this document's URI class.
	FetchMerged FetchStatus = "merged"

	// FetchFetched means new content was stored.
	FetchFetched FetchStatus = "fetched"
)

// FetchOutcome reports what the download stage did.
type FetchOutcome struct {
	Status FetchStatus

	// DocID is the fetched document.
	DocID int64

	// MIMEType is the base MIME type of the stored content.
	MIMEType string

	// MergedInto is the surviving document when Status is FetchMerged.
	MergedInto int64

	// Incomplete is set on skipped and unchanged downloads whose document
	// has no derived text or no fragments yet.
	Incomplete bool
}

// ExtractStatus is the result of the extraction stage.
type ExtractStatus string

// Extract stage results.
const (
	ExtractUnchanged ExtractStatus = "unchanged"
	ExtractExtracted ExtractStatus = "extracted"
)

// ExtractOutcome reports what the extraction stage did.
type ExtractOutcome struct {
	Status ExtractStatus

	// DocID is the extracted document.
	DocID int64

	// FragmentIDs are the new fragments, in position order.
	FragmentIDs []int64

	// Collections of the document, used to pick extra embedding models.
	Collections []string
}

// BatchOptions configures a batch embedding run.
type BatchOptions struct {
	// Model is the embedding model. Empty means the base model.
	Model string

	// Collection restricts the run to one collection.
	Collection string

	// Documents and Fragments select the target kinds.
	Documents bool
	Fragments bool

	// BatchSize is the number of texts per model call.
	BatchSize int

	// PauseAfter pauses after this many batches. Zero never pauses.
	PauseAfter int

	// PauseLength is the pause duration.
	PauseLength time.Duration

	// MaxSize skips fragments longer than this many runes and truncates
	// document text to it.
	MaxSize int
}

// Batch embedding defaults.
const (
	DefaultBatchSize   = 10
	DefaultPauseLength = 60 * time.Second
)

// BatchResult counts what a batch embedding run did.
type BatchResult struct {
	Embedded int
	Skipped  int
	Batches  int
}

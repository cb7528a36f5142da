package driven

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// Extractor turns raw content of one family of MIME types into derived
// text and paragraphs. The set is closed: html, pdf and text.
type Extractor interface {
	// Kind identifies the extractor.
	Kind() domain.ExtractorKind

	// Extract derives text, paragraphs and a title from content.
	// Extraction is deterministic for identical input.
	Extract(ctx context.Context, content []byte) (*domain.Extraction, error)
}

// CommandRunner executes external commands. Injected into extractors
// that shell out so tests can replace the binary.
type CommandRunner interface {
	// Run executes name with args and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// LanguageDetector guesses the language of a text.
type LanguageDetector interface {
	// Detect returns an ISO 639-1 code and whether detection succeeded.
	Detect(text string) (string, bool)
}

// Package text extracts paragraphs from plain text and markdown.
package text

import (
	"context"
	"strings"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Version of the process_text analyzer.
const Version = 1

// Extractor handles plain text documents. Each line is a paragraph and
// the derived text is the content itself.
type Extractor struct{}

// New creates a new text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the extractor kind.
func (e *Extractor) Kind() domain.ExtractorKind {
	return domain.ExtractorText
}

// Extract splits content on line feeds.
func (e *Extractor) Extract(_ context.Context, content []byte) (*domain.Extraction, error) {
	text := string(content)
	return &domain.Extraction{
		Text:       text,
		Paragraphs: strings.Split(text, "\n"),
		Title:      headingTitle(text),
	}, nil
}

// headingTitle returns the first markdown level-one heading, if any.
func headingTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if title, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return ""
}

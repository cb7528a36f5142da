// Package minlength drops paragraphs that are too short to be useful
// retrieval units (navigation labels, captions, bylines).
package minlength

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// DefaultMinLength is the default minimum paragraph length in runes.
const DefaultMinLength = 120

// Processor keeps paragraphs of at least a given rune length.
// It implements the PostProcessor interface.
type Processor struct {
	minLength int
}

// New creates a processor. A negative length is treated as zero.
func New(minLength int) *Processor {
	if minLength < 0 {
		minLength = 0
	}
	return &Processor{minLength: minLength}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "minlength"
}

// MinLength returns the configured threshold.
func (p *Processor) MinLength() int {
	return p.minLength
}

// Process returns the paragraphs whose text is at least minLength runes.
func (p *Processor) Process(_ context.Context, paras []domain.Paragraph) ([]domain.Paragraph, error) {
	kept := make([]domain.Paragraph, 0, len(paras))
	for _, para := range paras {
		if utf8.RuneCountInString(para.Text) >= p.minLength {
			kept = append(kept, para)
		}
	}
	return kept, nil
}

// Package maxlength drops paragraphs longer than a limit.
package maxlength

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// Processor keeps paragraphs of at most a given rune length.
// A limit of zero disables the check.
type Processor struct {
	maxLength int
}

// New creates a processor.
func New(maxLength int) *Processor {
	if maxLength < 0 {
		maxLength = 0
	}
	return &Processor{maxLength: maxLength}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "maxlength"
}

// Process returns the paragraphs no longer than maxLength runes.
func (p *Processor) Process(_ context.Context, paras []domain.Paragraph) ([]domain.Paragraph, error) {
	if p.maxLength == 0 {
		return paras, nil
	}
	kept := make([]domain.Paragraph, 0, len(paras))
	for _, para := range paras {
		if utf8.RuneCountInString(para.Text) <= p.maxLength {
			kept = append(kept, para)
		}
	}
	return kept, nil
}

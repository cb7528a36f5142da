// Package lingua provides language detection backed by lingua-go.
package lingua

import (
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Detector implements the interface.
var _ driven.LanguageDetector = (*Detector)(nil)

// DefaultLanguages are loaded when none are configured. Loading every
// language model costs about a gigabyte of memory.
var DefaultLanguages = []lingua.Language{
	lingua.English, lingua.French, lingua.German, lingua.Spanish,
	lingua.Italian, lingua.Portuguese, lingua.Dutch,
}

// minTextLength is the shortest text worth classifying.
const minTextLength = 20

// Detector guesses the ISO 639-1 language of a text.
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector for the given languages, or DefaultLanguages.
func NewDetector(languages ...lingua.Language) *Detector {
	if len(languages) < 2 {
		languages = DefaultLanguages
	}
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithMinimumRelativeDistance(0.1).
			Build(),
	}
}

// Detect returns a lowercase ISO 639-1 code and whether detection succeeded.
func (d *Detector) Detect(text string) (string, bool) {
	if len(strings.TrimSpace(text)) < minTextLength {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

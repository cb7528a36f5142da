package extractors

import (
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/extractors/html"
	"github.com/custodia-labs/claimminer/internal/extractors/pdf"
	"github.com/custodia-labs/claimminer/internal/extractors/text"
)

// Defaults returns one extractor per kind.
func Defaults() []driven.Extractor {
	return []driven.Extractor{html.New(), pdf.New(), text.New()}
}

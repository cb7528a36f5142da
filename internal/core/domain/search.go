package domain

import "fmt"

// SearchMode selects the ranking algorithm.
type SearchMode string

// Available search modes.
const (
	// SearchModeSemantic ranks by ascending cosine distance.
	SearchModeSemantic SearchMode = "semantic"

	// SearchModeMMR ranks by Maximal Marginal Relevance.
	SearchModeMMR SearchMode = "mmr"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	return m == SearchModeSemantic || m == SearchModeMMR
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeSemantic:
		return "Semantic (closest fragments first)"
	case SearchModeMMR:
		return "MMR (relevant and diverse fragments)"
	default:
		return unknownDescription
	}
}

// AllSearchModes returns every search mode.
func AllSearchModes() []SearchMode {
	return []SearchMode{SearchModeSemantic, SearchModeMMR}
}

// Search defaults.
const (
	DefaultSearchLimit   = 20
	DefaultMMRLambda     = 0.7
	DefaultCandidatePool = 1000
)

// SearchFilter narrows the candidate set.
type SearchFilter struct {
	// Scales is an allow-list of fragment types. Empty means paragraphs
	// plus the visible standalone types.
	Scales []FragmentType

	// Collection restricts to fragments of documents (or standalone
	// fragments) tagged with this collection.
	Collection string

	// Language restricts to one language code.
	Language string

	// ExcludeFragmentID drops one fragment, used when searching near it.
	ExcludeFragmentID int64
}

// EffectiveScales returns the scale allow-list with defaults applied.
func (f SearchFilter) EffectiveScales() []FragmentType {
	if len(f.Scales) > 0 {
		return f.Scales
	}
	return append([]FragmentType{FragmentTypeParagraph}, VisibleStandaloneTypes()...)
}

// SearchQuery configures a retrieval request.
type SearchQuery struct {
	// Text is embedded on the fly. Exclusive with FragmentID.
	Text string

	// FragmentID searches near an existing fragment's stored vector.
	FragmentID int64

	// Mode selects semantic or MMR ranking.
	Mode SearchMode

	// Model is the embedding model. Empty means the base model.
	Model string

	// Lambda trades relevance (1) against diversity (0) in MMR mode.
	Lambda float64

	// Limit is the maximum number of results.
	Limit int

	// Offset is the number of ranked results to skip.
	Offset int

	// CandidatePool bounds the MMR candidate set. 0 means all candidates.
	CandidatePool int

	// Filter narrows candidates.
	Filter SearchFilter
}

// Validate checks the query and fills defaults.
func (q *SearchQuery) Validate() error {
	if q.Text == "" && q.FragmentID == 0 {
		return fmt.Errorf("%w: query text or fragment is required", ErrInvalidInput)
	}
	if q.Text != "" && q.FragmentID != 0 {
		return fmt.Errorf("%w: query text and fragment are exclusive", ErrInvalidInput)
	}
	if q.Mode == "" {
		q.Mode = SearchModeSemantic
	}
	if !q.Mode.IsValid() {
		return fmt.Errorf("%w: unknown search mode %q", ErrInvalidInput, q.Mode)
	}
	if q.Lambda < 0 || q.Lambda > 1 {
		return fmt.Errorf("%w: lambda must be within [0,1], got %v", ErrInvalidInput, q.Lambda)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidInput)
	}
	if q.CandidatePool < 0 {
		return fmt.Errorf("%w: negative candidate pool", ErrInvalidInput)
	}
	return nil
}

// Candidate is a fragment vector eligible for ranking.
type Candidate struct {
	// FragmentID identifies the fragment.
	FragmentID int64

	// Vector is the stored embedding.
	Vector []float32

	// Distance is the cosine distance to the query vector.
	Distance float64
}

// SearchResult represents a single ranked hit.
type SearchResult struct {
	// Fragment is the matched fragment.
	Fragment Fragment

	// DocumentURI is the URI of the owning document, if any.
	DocumentURI string

	// DocumentTitle is the title of the owning document, if any.
	DocumentTitle string

	// Distance is the cosine distance to the query.
	Distance float64

	// Score is the relevance (1 - distance) in semantic mode, or the MMR
	// score at selection time in MMR mode.
	Score float64

	// Rank is the 0-based position in the full ranking.
	Rank int
}

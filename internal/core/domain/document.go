package domain

import (
	"bytes"
	"encoding/json"
	"time"
	"unicode/utf8"
)

// DocumentState is the pipeline state of a Document, derived from its fields.
type DocumentState string

// Document states. Failed and Extracted are terminal.
const (
	DocumentStateSubmitted DocumentState = "submitted"
	DocumentStateFailed    DocumentState = "failed"
	DocumentStateFetched   DocumentState = "fetched"
	DocumentStateExtracted DocumentState = "extracted"
)

// Document is one fetch or upload of a resource.
type Document struct {
	// ID is the unique identifier for the document.
	ID int64

	// URIID links to the document's own member of a URI equivalence class.
	URIID int64

	// URI is the member's URI string. Read-only; populated by stores.
	URI string

	// IsArchive marks archive snapshots, which may share a class with the live page.
	IsArchive bool

	// Requested is when the document was submitted.
	Requested time.Time

	// ReturnCode is the HTTP status of the last fetch.
	// Zero with Attempted set records a network failure.
	ReturnCode int

	// Attempted is true once a fetch has been tried or content uploaded.
	Attempted bool

	// Retrieved is when the content was fetched.
	Retrieved time.Time

	// Created is the creation date reported by the source, if any.
	Created time.Time

	// Modified is the Last-Modified date reported by the source, if any.
	Modified time.Time

	// MIMEType is the Content-Type, possibly with parameters.
	MIMEType string

	// Language is the detected or declared language code.
	Language string

	// AddedBy identifies the principal who submitted the document.
	AddedBy string

	// TextAnalyzerID is the analyzer that produced the derived text.
	TextAnalyzerID *int64

	// ETag is the entity tag reported by the source.
	ETag string

	// FileIdentity is the content key of the raw bytes.
	// Set only after a successful fetch or upload.
	FileIdentity string

	// FileSize is the raw byte length.
	FileSize int64

	// TextIdentity is the content key of the derived text.
	// Set only after a successful extraction.
	TextIdentity string

	// TextSize is the derived text byte length.
	TextSize int64

	// Title is the detected title.
	Title string

	// ProcessParams are the extraction parameters used for the current text.
	ProcessParams map[string]any

	// Meta contains arbitrary key-value pairs.
	Meta map[string]any

	// Collections tags the document with collection names.
	Collections []string
}

// State derives the pipeline state from the document fields.
func (d *Document) State() DocumentState {
	switch {
	case d.TextIdentity != "":
		return DocumentStateExtracted
	case d.FileIdentity != "":
		return DocumentStateFetched
	case d.Attempted && (d.ReturnCode < 200 || d.ReturnCode > 299):
		return DocumentStateFailed
	default:
		return DocumentStateSubmitted
	}
}

// BaseMIMEType returns the MIME type without parameters.
func (d *Document) BaseMIMEType() string {
	return BaseMIMEType(d.MIMEType)
}

// SameProcessParams reports whether params match the parameters recorded
// on the document. Nil and empty maps are equal. Values are compared in
// their JSON form so decoded numbers match their integer originals.
func (d *Document) SameProcessParams(params map[string]any) bool {
	if len(d.ProcessParams) == 0 && len(params) == 0 {
		return true
	}
	a, errA := json.Marshal(d.ProcessParams)
	b, errB := json.Marshal(params)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// FragmentType tags the kind of text a Fragment holds.
type FragmentType string

// Fragment types found inside documents.
const (
	FragmentTypeDocument  FragmentType = "document"
	FragmentTypeParagraph FragmentType = "paragraph"
	FragmentTypeSentence  FragmentType = "sentence"
	FragmentTypePhrase    FragmentType = "phrase"
	FragmentTypeQuote     FragmentType = "quote"
)

// Standalone fragment types live outside any document.
const (
	FragmentTypeStandalone         FragmentType = "standalone"
	FragmentTypeGenerated          FragmentType = "generated"
	FragmentTypeStandaloneRoot     FragmentType = "standalone_root"
	FragmentTypeStandaloneCategory FragmentType = "standalone_category"
	FragmentTypeStandaloneQuestion FragmentType = "standalone_question"
	FragmentTypeStandaloneClaim    FragmentType = "standalone_claim"
	FragmentTypeStandaloneArgument FragmentType = "standalone_argument"
	FragmentTypeReifiedArgLink     FragmentType = "reified_arg_link"
)

// AllFragmentTypes lists every fragment type.
func AllFragmentTypes() []FragmentType {
	return []FragmentType{
		FragmentTypeDocument, FragmentTypeParagraph, FragmentTypeSentence,
		FragmentTypePhrase, FragmentTypeQuote,
		FragmentTypeStandalone, FragmentTypeGenerated, FragmentTypeStandaloneRoot,
		FragmentTypeStandaloneCategory, FragmentTypeStandaloneQuestion,
		FragmentTypeStandaloneClaim, FragmentTypeStandaloneArgument, FragmentTypeReifiedArgLink,
	}
}

// VisibleStandaloneTypes are the standalone types shown in search by default.
func VisibleStandaloneTypes() []FragmentType {
	return []FragmentType{
		FragmentTypeStandalone, FragmentTypeGenerated,
		FragmentTypeStandaloneQuestion, FragmentTypeStandaloneClaim,
		FragmentTypeStandaloneArgument,
	}
}

// IsValid returns true if the fragment type is recognised.
func (t FragmentType) IsValid() bool {
	for _, known := range AllFragmentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// IsStandalone reports whether fragments of this type have no document.
func (t FragmentType) IsStandalone() bool {
	switch t {
	case FragmentTypeStandalone, FragmentTypeGenerated, FragmentTypeStandaloneRoot,
		FragmentTypeStandaloneCategory, FragmentTypeStandaloneQuestion,
		FragmentTypeStandaloneClaim, FragmentTypeStandaloneArgument, FragmentTypeReifiedArgLink:
		return true
	default:
		return false
	}
}

// GenerationData records how a fragment was synthesised.
type GenerationData struct {
	// Sources are the fragment IDs used to produce this fragment.
	Sources []int64 `json:"sources,omitempty"`
}

// Fragment is a unit of extracted or authored text.
type Fragment struct {
	// ID is the unique identifier for the fragment.
	ID int64

	// DocID links to the parent Document. Nil for standalone fragments.
	DocID *int64

	// Position is the ordinal of the paragraph in the derived text.
	Position int

	// CharPosition is the rune offset of Text inside the derived text.
	CharPosition int

	// Text is the fragment content.
	Text string

	// Scale is the fragment type.
	Scale FragmentType

	// Language is the language code of the text.
	Language string

	// CreatedBy identifies the principal that authored a standalone fragment.
	CreatedBy string

	// PartOf links to an enclosing fragment.
	PartOf *int64

	// AnalysisID links to the analysis that generated this fragment.
	AnalysisID *int64

	// GenerationData records synthesis provenance.
	GenerationData *GenerationData

	// Confirmed marks operator-approved generated fragments.
	Confirmed bool

	// Collections tags standalone fragments with collection names.
	Collections []string
}

// Paragraph is a positioned piece of derived text before it becomes a Fragment.
type Paragraph struct {
	// Position is the index among all paragraphs, including discarded ones.
	Position int

	// CharPosition is the rune offset in the derived text.
	CharPosition int

	// Text is the paragraph content.
	Text string
}

// PositionParagraphs assigns positions and rune offsets to paragraph
// texts. Offsets assume the texts are joined by a single "\n", so they are
// computed over every paragraph before any filtering.
func PositionParagraphs(texts []string) []Paragraph {
	paras := make([]Paragraph, len(texts))
	offset := 0
	for i, text := range texts {
		paras[i] = Paragraph{Position: i, CharPosition: offset, Text: text}
		offset += utf8.RuneCountInString(text) + 1
	}
	return paras
}

// Extraction is the output of a text extractor.
type Extraction struct {
	// Text is the full derived text. Paragraphs joined by "\n".
	Text string

	// Paragraphs are the ordered paragraph texts.
	Paragraphs []string

	// Title is the detected title, if any.
	Title string
}

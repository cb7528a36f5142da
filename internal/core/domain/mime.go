package domain

import "strings"

// ExtractorKind names one member of the closed set of text extractors.
type ExtractorKind string

// Available extractor kinds.
const (
	ExtractorHTML ExtractorKind = "html"
	ExtractorPDF  ExtractorKind = "pdf"
	ExtractorText ExtractorKind = "text"
)

// IsValid returns true if the kind is recognised.
func (k ExtractorKind) IsValid() bool {
	return k == ExtractorHTML || k == ExtractorPDF || k == ExtractorText
}

// Topic returns the dispatcher topic that runs this extractor.
func (k ExtractorKind) Topic() Topic {
	switch k {
	case ExtractorHTML:
		return TopicProcessHTML
	case ExtractorPDF:
		return TopicProcessPDF
	default:
		return TopicProcessText
	}
}

// BaseMIMEType strips parameters and lowercases a Content-Type value.
func BaseMIMEType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// ExtractorKindFor selects the extractor for a MIME type.
// Returns false when no extractor handles it.
func ExtractorKindFor(mimeType string) (ExtractorKind, bool) {
	switch BaseMIMEType(mimeType) {
	case "text/html", "application/xhtml+xml":
		return ExtractorHTML, true
	case "application/pdf":
		return ExtractorPDF, true
	case "text/plain", "text/markdown", "text/x-markdown":
		return ExtractorText, true
	default:
		return "", false
	}
}

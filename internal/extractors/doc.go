// Package extractors holds the closed set of text extractors.
//
// Each extractor turns raw bytes of one MIME family into derived text and
// an ordered list of paragraphs:
//
//   - html: paragraph-or-page heuristic over the parsed DOM
//   - pdf: pdftotext output split on blank lines
//   - text: one paragraph per line
//
// Extractors are pure: identical input yields identical output. Paragraph
// filtering happens afterwards in the postprocessors pipeline.
package extractors

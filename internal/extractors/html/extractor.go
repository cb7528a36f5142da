// Package html extracts paragraphs and a title from HTML pages.
package html

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Version of the process_html analyzer.
const Version = 1

// paragraphCoverage is the share of page text that <p> elements must hold
// for the page to be split along them.
const paragraphCoverage = 0.8

// Pre-compiled regular expressions for whitespace handling.
var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{a0}]+`)
	lineBreaks      = regexp.MustCompile(`([ \t\f\v\x{a0}]?\n[ \t\f\v\x{a0}]?)+`)
)

// baseURL resolves relative links for readability. Links are not used.
var baseURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the extractor kind.
func (e *Extractor) Kind() domain.ExtractorKind {
	return domain.ExtractorHTML
}

// Extract parses the page and splits it into paragraphs.
//
// When the <p> elements hold at least 80% of the page text, each one
// becomes a paragraph with its whitespace collapsed. Otherwise the whole
// page text is split on line breaks after collapsing horizontal space.
func (e *Extractor) Extract(_ context.Context, content []byte) (*domain.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := extractTitle(content, doc)

	doc.Find("script, style, noscript").Remove()
	pageText := doc.Text()

	var paras []string
	pLength := 0
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		t := s.Text()
		paras = append(paras, t)
		pLength += utf8.RuneCountInString(t)
	})

	var text string
	if float64(pLength) >= paragraphCoverage*float64(utf8.RuneCountInString(pageText)) {
		for i, p := range paras {
			paras[i] = collapseWhitespace(p)
		}
		text = strings.Join(paras, "\n")
	} else {
		text = collapseKeepingLines(pageText)
		paras = strings.Split(text, "\n")
	}

	return &domain.Extraction{
		Text:       text,
		Paragraphs: paras,
		Title:      title,
	}, nil
}

// extractTitle asks readability for the article title and falls back to
// the <title> element.
func extractTitle(content []byte, doc *goquery.Document) string {
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(content), baseURL)
	if err == nil {
		if title := strings.TrimSpace(article.Title); title != "" {
			return collapseWhitespace(title)
		}
	}
	return collapseWhitespace(doc.Find("title").First().Text())
}

// collapseWhitespace replaces every whitespace run with one space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collapseKeepingLines collapses horizontal whitespace and merges runs of
// line breaks, with the spaces around them, into one "\n".
func collapseKeepingLines(s string) string {
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = lineBreaks.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

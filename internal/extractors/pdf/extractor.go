// Package pdf extracts paragraphs from PDF files using pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Version of the process_pdf analyzer.
const Version = 1

const toolName = "pdftotext"

// maxTitleLength bounds the first line accepted as a title.
const maxTitleLength = 200

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

var (
	blankLines     = regexp.MustCompile(`\n\n+`)
	wrappedLine    = regexp.MustCompile(`\s*\n\s*`)
	repeatedSpaces = regexp.MustCompile(`\s\s+`)
)

// execRunner runs commands on the host.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Extractor handles PDF documents.
type Extractor struct {
	runner    driven.CommandRunner
	checkPath bool
}

// New creates a PDF extractor that runs pdftotext from PATH.
func New() *Extractor {
	return &Extractor{runner: execRunner{}, checkPath: true}
}

// NewWithRunner creates a PDF extractor with a custom command runner.
func NewWithRunner(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Kind returns the extractor kind.
func (e *Extractor) Kind() domain.ExtractorKind {
	return domain.ExtractorPDF
}

// Extract converts the PDF to text and splits it on blank lines.
// Line wraps inside a paragraph become spaces.
func (e *Extractor) Extract(ctx context.Context, content []byte) (*domain.Extraction, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty pdf", domain.ErrInvalidInput)
	}
	if e.checkPath {
		if err := CheckAvailable(); err != nil {
			return nil, err
		}
	}

	path, err := writeTemp(content)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	// Without -layout pdftotext emits columns in reading order.
	out, err := e.runner.Run(ctx, toolName, "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	// Page breaks end a paragraph.
	raw := strings.ReplaceAll(string(out), "\f", "\n\n")
	paras := splitParagraphs(raw)

	return &domain.Extraction{
		Text:       strings.Join(paras, "\n"),
		Paragraphs: paras,
		Title:      extractTitle(raw),
	}, nil
}

// splitParagraphs splits on blank lines and joins wrapped lines.
func splitParagraphs(raw string) []string {
	var paras []string
	for _, block := range blankLines.Split(raw, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		block = wrappedLine.ReplaceAllString(block, " ")
		paras = append(paras, repeatedSpaces.ReplaceAllString(block, " "))
	}
	return paras
}

// extractTitle returns the first non-empty line short enough to be a title.
func extractTitle(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" && len(line) < maxTitleLength {
			return line
		}
	}
	return ""
}

func writeTemp(content []byte) (string, error) {
	f, err := os.CreateTemp("", "claimminer-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp pdf: %w", err)
	}
	return f.Name(), nil
}

// CheckAvailable verifies pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions explains how to install pdftotext.
func InstallInstructions() string {
	return `PDF extraction requires pdftotext (part of poppler).

Install it with:
  macOS:          brew install poppler
  Debian/Ubuntu:  sudo apt install poppler-utils
  Fedora:         sudo dnf install poppler-utils`
}

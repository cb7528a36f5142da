package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Ensure ExtractService implements the interface.
var _ driving.ExtractService = (*ExtractService)(nil)

// ExtractService turns fetched content into derived text and paragraph
// fragments. Extraction itself runs on a bounded pool so CPU-heavy
// documents do not starve the other partitions.
type ExtractService struct {
	docs       driven.DocumentStore
	blobs      driven.BlobStore
	vectors    driven.VectorStore
	analyzers  *AnalyzerCache
	extractors map[domain.ExtractorKind]driven.Extractor
	pipeline   driven.PostProcessorPipeline
	detector   driven.LanguageDetector
	sem        chan struct{}
}

// NewExtractService creates the extraction stage. detector may be nil,
// in which case the document's header language is kept.
func NewExtractService(
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	vectors driven.VectorStore,
	analyzers *AnalyzerCache,
	extractors []driven.Extractor,
	pipeline driven.PostProcessorPipeline,
	detector driven.LanguageDetector,
	workers int,
) *ExtractService {
	if workers <= 0 {
		workers = 1
	}
	byKind := make(map[domain.ExtractorKind]driven.Extractor, len(extractors))
	for _, e := range extractors {
		byKind[e.Kind()] = e
	}
	return &ExtractService{
		docs:       docs,
		blobs:      blobs,
		vectors:    vectors,
		analyzers:  analyzers,
		extractors: byKind,
		pipeline:   pipeline,
		detector:   detector,
		sem:        make(chan struct{}, workers),
	}
}

// Extract derives text and fragments for a document.
//
// Work is skipped (ExtractUnchanged) unless params ask for a reparse,
// params differ from the ones recorded on the document, the document has
// no derived text, or it has derived text but no fragments. Identical
// derived text with existing fragments is also left alone.
//
//nolint:gocyclo // Sequential stage with one branch per skip condition
func (s *ExtractService) Extract(
	ctx context.Context, docID int64, kind domain.ExtractorKind, params map[string]any,
) (*domain.ExtractOutcome, error) {
	extractor, ok := s.extractors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: extractor %q", domain.ErrUnsupportedType, kind)
	}

	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("document %d: %w", docID, domain.ErrNotYetVisible)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc.FileIdentity == "" {
		return nil, fmt.Errorf("%w: document %d has no content", domain.ErrInvalidInput, docID)
	}

	outcome := &domain.ExtractOutcome{
		Status:      domain.ExtractUnchanged,
		DocID:       docID,
		Collections: doc.Collections,
	}

	reparse := domain.ParamBool(params, domain.ParamReparse)
	stored := domain.WithoutKeys(params, domain.ParamReparse, domain.ParamRefetch)
	sameParams := doc.SameProcessParams(stored)

	fragmentCount := 0
	if doc.TextIdentity != "" {
		fragmentCount, err = s.docs.CountFragments(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("count fragments: %w", err)
		}
		if !reparse && sameParams && fragmentCount > 0 {
			return outcome, nil
		}
	}

	content, err := readBlob(ctx, s.blobs, doc.FileIdentity)
	if err != nil {
		return nil, err
	}

	extraction, err := s.runExtractor(ctx, extractor, content)
	if err != nil {
		return nil, fmt.Errorf("extract %s document %d: %w", kind, docID, err)
	}

	textKey, err := s.blobs.Put(ctx, []byte(extraction.Text))
	if err != nil {
		return nil, fmt.Errorf("store text: %w", err)
	}
	if textKey == doc.TextIdentity && sameParams && fragmentCount > 0 {
		return outcome, nil
	}

	paras, err := s.pipeline.Process(ctx, domain.PositionParagraphs(extraction.Paragraphs))
	if err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}

	language := doc.Language
	if s.detector != nil {
		if detected, ok := s.detector.Detect(extraction.Text); ok {
			language = detected
		}
	}

	fragments := make([]domain.Fragment, len(paras))
	for i, p := range paras {
		fragments[i] = domain.Fragment{
			DocID:        &doc.ID,
			Position:     p.Position,
			CharPosition: p.CharPosition,
			Text:         p.Text,
			Scale:        domain.FragmentTypeParagraph,
			Language:     language,
		}
	}

	analyzerID, err := s.analyzers.ID(ctx, domain.Analyzer{
		Name:    kind.Topic().String(),
		Version: domain.ExtractionVersion,
	})
	if err != nil {
		return nil, err
	}

	if err := s.vectors.DeleteDocument(ctx, docID); err != nil {
		return nil, fmt.Errorf("delete embeddings: %w", err)
	}

	saved, err := s.docs.ReplaceFragments(ctx, driven.ExtractionUpdate{
		DocID:          docID,
		Fragments:      fragments,
		TextIdentity:   textKey,
		TextSize:       int64(len(extraction.Text)),
		TextAnalyzerID: analyzerID,
		Language:       language,
		Title:          extraction.Title,
		ProcessParams:  stored,
	})
	if err != nil {
		return nil, fmt.Errorf("replace fragments: %w", err)
	}

	if doc.TextIdentity != textKey {
		releaseBlobs(ctx, s.docs, s.blobs, doc.TextIdentity)
	}

	logger.Info("Extracted document %d: %d of %d paragraphs kept", docID, len(saved), len(extraction.Paragraphs))

	outcome.Status = domain.ExtractExtracted
	outcome.FragmentIDs = make([]int64, len(saved))
	for i, f := range saved {
		outcome.FragmentIDs[i] = f.ID
	}
	return outcome, nil
}

// runExtractor runs one extraction inside the worker pool.
func (s *ExtractService) runExtractor(
	ctx context.Context, extractor driven.Extractor, content []byte,
) (*domain.Extraction, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	return extractor.Extract(ctx, content)
}

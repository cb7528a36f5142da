package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driving.EmbedService = (*EmbeddingService)(nil)

// listPageSize is the page size used when scanning for missing embeddings.
const listPageSize = 500

// EmbeddingService computes vectors with the registered models and
// persists them in the vector store.
type EmbeddingService struct {
	models    *ModelRegistry
	docs      driven.DocumentStore
	blobs     driven.BlobStore
	vectors   driven.VectorStore
	analyzers *AnalyzerCache
	metrics   driven.Metrics
	maxSize   int
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewEmbeddingService creates the embedding service. Document text is cut
// at maxSize runes before embedding. metrics may be nil.
func NewEmbeddingService(
	models *ModelRegistry,
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	vectors driven.VectorStore,
	analyzers *AnalyzerCache,
	maxSize int,
	metrics driven.Metrics,
) *EmbeddingService {
	return &EmbeddingService{
		models:    models,
		docs:      docs,
		blobs:     blobs,
		vectors:   vectors,
		analyzers: analyzers,
		metrics:   orNop(metrics),
		maxSize:   maxSize,
		sleep:     sleepContext,
	}
}

// Embed returns one L2-normalized vector per text, in input order.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model = s.models.Resolve(model)
	svc, err := s.models.Get(model)
	if err != nil {
		return nil, err
	}

	vectors, err := svc.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed with %s: got %d vectors for %d texts", model, len(vectors), len(texts))
	}

	dims := svc.Dimensions()
	for i, v := range vectors {
		if dims > 0 && len(v) != dims {
			return nil, fmt.Errorf("%w: model %s returned %d dimensions, want %d",
				domain.ErrDimensionMismatch, model, len(v), dims)
		}
		vectors[i] = domain.Normalize(v)
	}

	s.metrics.EmbeddingsComputed(model, len(vectors))
	return vectors, nil
}

// embedTarget is a text waiting for a vector.
type embedTarget struct {
	target      domain.EmbeddingTarget
	docID       *int64
	scale       domain.FragmentType
	language    string
	collections []string
	text        string
}

// HandleEmbedMessage embeds the target named by a "D<id>" or "F<id>"
// payload, optionally followed by a model name. Targets that already have
// a vector for the model are left alone.
func (s *EmbeddingService) HandleEmbedMessage(ctx context.Context, payload string) error {
	target, model, err := domain.ParseEmbedPayload(payload)
	if err != nil {
		return err
	}
	model = s.models.Resolve(model)

	exists, err := s.vectors.Exists(ctx, model, target)
	if err != nil {
		return fmt.Errorf("check embedding: %w", err)
	}
	if exists {
		logger.Debug("Embedding %s/%s exists", model, target)
		return nil
	}

	t, err := s.load(ctx, target, s.maxSize)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("embed target %s: %w", target, domain.ErrNotYetVisible)
		}
		return err
	}

	return s.embedAndSave(ctx, model, []embedTarget{*t})
}

// load reads the text and filter attributes of a target.
func (s *EmbeddingService) load(ctx context.Context, target domain.EmbeddingTarget, maxSize int) (*embedTarget, error) {
	switch target.Kind {
	case domain.TargetFragment:
		f, err := s.docs.GetFragment(ctx, target.ID)
		if err != nil {
			return nil, fmt.Errorf("get fragment: %w", err)
		}
		t := fragmentTarget(*f)
		if f.DocID != nil {
			doc, err := s.docs.GetDocument(ctx, *f.DocID)
			if err != nil {
				return nil, fmt.Errorf("get document: %w", err)
			}
			t.collections = doc.Collections
		}
		return t, nil

	default:
		doc, err := s.docs.GetDocument(ctx, target.ID)
		if err != nil {
			return nil, fmt.Errorf("get document: %w", err)
		}
		if doc.TextIdentity == "" {
			return nil, fmt.Errorf("document %d has no text: %w", doc.ID, domain.ErrNotFound)
		}
		text, err := readBlob(ctx, s.blobs, doc.TextIdentity)
		if err != nil {
			return nil, err
		}
		return &embedTarget{
			target:      target,
			docID:       &doc.ID,
			scale:       domain.FragmentTypeDocument,
			language:    doc.Language,
			collections: doc.Collections,
			text:        truncateRunes(string(text), maxSize),
		}, nil
	}
}

func fragmentTarget(f domain.Fragment) *embedTarget {
	return &embedTarget{
		target:      domain.FragmentTarget(f.ID),
		docID:       f.DocID,
		scale:       f.Scale,
		language:    f.Language,
		collections: f.Collections,
		text:        f.Text,
	}
}

// embedAndSave embeds a batch with one model call and stores the vectors.
func (s *EmbeddingService) embedAndSave(ctx context.Context, model string, batch []embedTarget) error {
	texts := make([]string, len(batch))
	for i, t := range batch {
		texts[i] = t.text
	}

	vectors, err := s.Embed(ctx, texts, model)
	if err != nil {
		return err
	}

	analyzerID, err := s.analyzers.ID(ctx, domain.Analyzer{
		Name:    domain.AnalyzerEmbedPrefix + model,
		Version: domain.EmbeddingVersion,
	})
	if err != nil {
		return err
	}

	for i, t := range batch {
		err := s.vectors.Save(ctx, domain.Embedding{
			Model:       model,
			Target:      t.target,
			DocID:       t.docID,
			Scale:       t.scale,
			AnalyzerID:  analyzerID,
			Vector:      vectors[i],
			Language:    t.language,
			Collections: t.collections,
		})
		if err != nil {
			return fmt.Errorf("save embedding %s/%s: %w", model, t.target, err)
		}
	}
	return nil
}

// BatchEmbed computes the embeddings missing for a model.
//
// Fragments longer than MaxSize runes are skipped; document text is cut
// to MaxSize. After every PauseAfter batches the run pauses for
// PauseLength. Cancellation is honoured between batches.
func (s *EmbeddingService) BatchEmbed(ctx context.Context, opts domain.BatchOptions) (*domain.BatchResult, error) {
	opts = s.batchDefaults(opts)
	if _, err := s.models.Get(opts.Model); err != nil {
		return nil, err
	}

	logger.Section("Batch Embedding")
	logger.Info("Batch embedding with %s (collection %q)", opts.Model, opts.Collection)

	b := &batcher{svc: s, opts: opts, result: &domain.BatchResult{}}

	if opts.Fragments {
		if err := b.scanFragments(ctx); err != nil {
			return b.result, err
		}
	}
	if opts.Documents {
		if err := b.scanDocuments(ctx); err != nil {
			return b.result, err
		}
	}
	if err := b.flush(ctx); err != nil {
		return b.result, err
	}

	logger.Info("Batch embedding done: %d embedded, %d skipped, %d batches",
		b.result.Embedded, b.result.Skipped, b.result.Batches)
	return b.result, nil
}

func (s *EmbeddingService) batchDefaults(opts domain.BatchOptions) domain.BatchOptions {
	opts.Model = s.models.Resolve(opts.Model)
	if !opts.Documents && !opts.Fragments {
		opts.Documents = true
		opts.Fragments = true
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = domain.DefaultBatchSize
	}
	if opts.PauseLength <= 0 {
		opts.PauseLength = domain.DefaultPauseLength
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = s.maxSize
	}
	return opts
}

// batcher accumulates targets and embeds them in fixed-size batches.
type batcher struct {
	svc     *EmbeddingService
	opts    domain.BatchOptions
	pending []embedTarget
	result  *domain.BatchResult
}

func (b *batcher) scanFragments(ctx context.Context) error {
	list := driven.ListOptions{Limit: listPageSize, Collection: b.opts.Collection}
	for {
		page, err := b.svc.docs.ListFragments(ctx, list)
		if err != nil {
			return fmt.Errorf("list fragments: %w", err)
		}
		for _, f := range page {
			list.AfterID = f.ID
			if b.opts.MaxSize > 0 && utf8.RuneCountInString(f.Text) > b.opts.MaxSize {
				b.result.Skipped++
				continue
			}
			exists, err := b.svc.vectors.Exists(ctx, b.opts.Model, domain.FragmentTarget(f.ID))
			if err != nil {
				return fmt.Errorf("check embedding: %w", err)
			}
			if exists {
				continue
			}
			t := fragmentTarget(f)
			if f.DocID != nil {
				doc, err := b.svc.docs.GetDocument(ctx, *f.DocID)
				if err != nil {
					return fmt.Errorf("get document: %w", err)
				}
				t.collections = doc.Collections
			}
			if err := b.add(ctx, *t); err != nil {
				return err
			}
		}
		if len(page) < list.Limit {
			return nil
		}
	}
}

func (b *batcher) scanDocuments(ctx context.Context) error {
	list := driven.ListOptions{Limit: listPageSize, Collection: b.opts.Collection, WithText: true}
	for {
		page, err := b.svc.docs.ListDocuments(ctx, list)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range page {
			list.AfterID = doc.ID
			target := domain.DocumentTarget(doc.ID)
			exists, err := b.svc.vectors.Exists(ctx, b.opts.Model, target)
			if err != nil {
				return fmt.Errorf("check embedding: %w", err)
			}
			if exists {
				continue
			}
			t, err := b.svc.load(ctx, target, b.opts.MaxSize)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					b.result.Skipped++
					continue
				}
				return err
			}
			if err := b.add(ctx, *t); err != nil {
				return err
			}
		}
		if len(page) < list.Limit {
			return nil
		}
	}
}

func (b *batcher) add(ctx context.Context, t embedTarget) error {
	b.pending = append(b.pending, t)
	if len(b.pending) < b.opts.BatchSize {
		return nil
	}
	return b.flush(ctx)
}

// flush embeds the pending targets, then pauses if a pause is due.
func (b *batcher) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.svc.embedAndSave(ctx, b.opts.Model, b.pending); err != nil {
		return err
	}
	b.result.Embedded += len(b.pending)
	b.result.Batches++
	b.pending = b.pending[:0]
	logger.Debug("Batch %d embedded (%d total)", b.result.Batches, b.result.Embedded)

	if b.opts.PauseAfter > 0 && b.result.Batches%b.opts.PauseAfter == 0 {
		logger.Debug("Pausing %s after %d batches", b.opts.PauseLength, b.result.Batches)
		return b.svc.sleep(ctx, b.opts.PauseLength)
	}
	return nil
}

// truncateRunes cuts s to at most n runes. n <= 0 keeps s whole.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Ensure FetchService implements the interface.
var _ driving.FetchService = (*FetchService)(nil)

// Fetch defaults for missing response headers.
const (
	defaultMIMEType = "text/html"
	defaultLanguage = "en"
)

// FetchService downloads documents into the content-addressable store.
type FetchService struct {
	docs         driven.DocumentStore
	blobs        driven.BlobStore
	vectors      driven.VectorStore
	fetcher      driven.Fetcher
	dedupMinSize int64
	now          func() time.Time
}

// NewFetchService creates the download stage.
// Content above dedupMinSize bytes is merged with identical documents.
func NewFetchService(
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	vectors driven.VectorStore,
	fetcher driven.Fetcher,
	dedupMinSize int64,
) *FetchService {
	return &FetchService{
		docs:         docs,
		blobs:        blobs,
		vectors:      vectors,
		fetcher:      fetcher,
		dedupMinSize: dedupMinSize,
		now:          time.Now,
	}
}

// Fetch downloads a document unless it already has content.
//
// Download failures are recorded on the document and reported as
// FetchFailed, not as errors. Content identical to another document
// larger than the dedup floor merges this document's URI class into the
// other one and deletes this document.
//
//nolint:gocyclo // Sequential stage with one branch per outcome
func (s *FetchService) Fetch(ctx context.Context, docID int64, params map[string]any) (*domain.FetchOutcome, error) {
	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("document %d: %w", docID, domain.ErrNotYetVisible)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	outcome := &domain.FetchOutcome{DocID: docID}

	if doc.FileIdentity != "" && !domain.ParamBool(params, domain.ParamRefetch) {
		outcome.Status = domain.FetchSkipped
		outcome.MIMEType = doc.BaseMIMEType()
		if outcome.Incomplete, err = s.incomplete(ctx, doc); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	logger.Debug("Fetching document %d from %s", docID, doc.URI)
	resp, fetchErr := s.fetcher.Fetch(ctx, doc.URI)
	if fetchErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	doc.Attempted = true
	doc.Retrieved = s.now().UTC()

	if fetchErr != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		doc.ReturnCode = 0
		if fetchErr != nil {
			logger.Warn("Fetching %s failed: %v", doc.URI, fetchErr)
		} else {
			doc.ReturnCode = resp.StatusCode
			logger.Warn("Fetching %s returned %d", doc.URI, resp.StatusCode)
		}
		if err := s.docs.UpdateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
		outcome.Status = domain.FetchFailed
		return outcome, nil
	}

	applyResponse(doc, resp)

	key, err := s.blobs.Put(ctx, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}
	outcome.MIMEType = doc.BaseMIMEType()

	if key == doc.FileIdentity {
		if err := s.docs.UpdateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
		outcome.Status = domain.FetchUnchanged
		if outcome.Incomplete, err = s.incomplete(ctx, doc); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	oldFile, oldText := doc.FileIdentity, doc.TextIdentity
	if oldFile != "" {
		if err := s.resetContent(ctx, doc); err != nil {
			return nil, err
		}
	}

	doc.FileIdentity = key
	doc.FileSize = int64(len(resp.Body))

	if doc.FileSize > s.dedupMinSize {
		existing, err := s.docs.FindByFileIdentity(ctx, key, doc.ID)
		switch {
		case err == nil:
			if err := s.docs.DiscardDuplicate(ctx, doc.ID, existing.URIID); err != nil {
				return nil, fmt.Errorf("discard duplicate: %w", err)
			}
			logger.Info("Document %d duplicates document %d, merged", doc.ID, existing.ID)
			releaseBlobs(ctx, s.docs, s.blobs, oldFile, oldText)
			outcome.Status = domain.FetchMerged
			outcome.MergedInto = existing.ID
			return outcome, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("find duplicate: %w", err)
		}
	}

	if err := s.docs.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	releaseBlobs(ctx, s.docs, s.blobs, oldFile, oldText)

	outcome.Status = domain.FetchFetched
	return outcome, nil
}

// resetContent drops the derived text, fragments and embeddings of a
// document whose content changed.
func (s *FetchService) resetContent(ctx context.Context, doc *domain.Document) error {
	if err := s.vectors.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	if err := s.docs.ResetContent(ctx, doc.ID); err != nil {
		return fmt.Errorf("reset content: %w", err)
	}
	doc.TextIdentity = ""
	doc.TextSize = 0
	doc.TextAnalyzerID = nil
	return nil
}

// applyResponse copies response metadata onto the document.
func applyResponse(doc *domain.Document, resp *driven.FetchResponse) {
	doc.ReturnCode = resp.StatusCode
	if !resp.LastModified.IsZero() {
		doc.Modified = resp.LastModified.UTC()
	}
	doc.MIMEType = resp.ContentType
	if doc.MIMEType == "" {
		doc.MIMEType = defaultMIMEType
	}
	doc.Language = primaryLanguage(resp.ContentLanguage)
	doc.ETag = resp.ETag
}

// primaryLanguage returns the primary subtag of the first language in a
// Content-Language header, or the default.
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(strings.TrimSpace(first), "-")
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return defaultLanguage
	}
	return tag
}

// incomplete reports whether a document with content still lacks the
// results of extraction.
func (s *FetchService) incomplete(ctx context.Context, doc *domain.Document) (bool, error) {
	if doc.TextIdentity == "" {
		return true, nil
	}
	n, err := s.docs.CountFragments(ctx, doc.ID)
	if err != nil {
		return false, fmt.Errorf("count fragments: %w", err)
	}
	return n == 0, nil
}

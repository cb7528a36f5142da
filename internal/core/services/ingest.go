package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService registers new documents and removes old ones. Submissions
// only create rows and enqueue the first stage; the dispatcher does the
// rest.
type IngestService struct {
	auth         driven.Authorizer
	collections  driven.CollectionResolver
	resolver     *Resolver
	docs         driven.DocumentStore
	blobs        driven.BlobStore
	vectors      driven.VectorStore
	queue        driving.Enqueuer
	dedupMinSize int64
	now          func() time.Time
}

// NewIngestService creates the ingestion service. collections may be nil,
// in which case collection names are not checked.
func NewIngestService(
	auth driven.Authorizer,
	collections driven.CollectionResolver,
	resolver *Resolver,
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	vectors driven.VectorStore,
	queue driving.Enqueuer,
	dedupMinSize int64,
) *IngestService {
	return &IngestService{
		auth:         auth,
		collections:  collections,
		resolver:     resolver,
		docs:         docs,
		blobs:        blobs,
		vectors:      vectors,
		queue:        queue,
		dedupMinSize: dedupMinSize,
		now:          time.Now,
	}
}

// SubmitURL registers an http(s) URL and enqueues its download.
func (s *IngestService) SubmitURL(
	ctx context.Context, principal, url string, collections []string,
) (*domain.Document, error) {
	if !domain.IsHTTPURL(url) {
		return nil, fmt.Errorf("%w: not an http(s) URL: %q", domain.ErrInvalidInput, url)
	}
	if _, err := domain.NormalizeURL(url); err != nil {
		return nil, err
	}

	docs, err := s.submitURLs(ctx, principal, []string{url}, collections, true)
	if err != nil {
		return nil, err
	}
	return &docs[0], nil
}

// SubmitURLs registers many URLs at once. Non-http inputs and known URLs
// are skipped.
func (s *IngestService) SubmitURLs(
	ctx context.Context, principal string, urls []string, collections []string,
) ([]domain.Document, error) {
	return s.submitURLs(ctx, principal, urls, collections, false)
}

func (s *IngestService) submitURLs(
	ctx context.Context, principal string, urls []string, collections []string, strict bool,
) ([]domain.Document, error) {
	if err := s.authorize(ctx, principal, driven.ActionAddDocument, collections); err != nil {
		return nil, err
	}

	created, existing, err := s.resolver.AddURLs(ctx, urls, s.archiveEquivalences(ctx, urls))
	if err != nil {
		return nil, err
	}

	// A known URI without a document, e.g. a variant, still gets one.
	uris := created
	for _, u := range existing {
		_, err := s.docs.FindByURI(ctx, u.ID)
		switch {
		case err == nil:
			if strict {
				return nil, fmt.Errorf("url %s: %w", u.URI, domain.ErrAlreadyExists)
			}
			logger.Debug("Skipping known URL %s", u.URI)
		case errors.Is(err, domain.ErrNotFound):
			uris = append(uris, u)
		default:
			return nil, fmt.Errorf("find document: %w", err)
		}
	}

	docs := make([]domain.Document, 0, len(uris))
	msgs := make([]domain.Message, 0, len(uris))
	for _, u := range uris {
		doc := domain.Document{
			URIID:       u.ID,
			URI:         u.URI,
			IsArchive:   domain.IsArchiveURL(u.URI),
			Requested:   s.now().UTC(),
			AddedBy:     principal,
			Collections: collections,
		}
		if err := s.docs.CreateDocument(ctx, &doc); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
		docs = append(docs, doc)
		msgs = append(msgs, domain.NewDocumentMessage(domain.TopicDownload, doc.ID, nil))
	}

	if err := s.queue.Enqueue(ctx, msgs...); err != nil {
		return nil, fmt.Errorf("enqueue downloads: %w", err)
	}

	logger.Info("Submitted %d URLs (%d new)", len(urls), len(docs))
	return docs, nil
}

// archiveEquivalences maps archive snapshot URLs to the stored member of
// the page they archive. Snapshots of unknown pages map to nothing.
func (s *IngestService) archiveEquivalences(ctx context.Context, urls []string) map[string]int64 {
	equivalences := make(map[string]int64)
	for _, u := range urls {
		original := domain.ArchivedURL(u)
		if original == "" {
			continue
		}
		uri, err := s.resolver.Lookup(ctx, original)
		if err != nil {
			continue
		}
		equivalences[u] = uri.ID
	}
	return equivalences
}

// SubmitFile stores uploaded content under url and enqueues extraction.
//
// Content identical to an existing document above the dedup floor is not
// stored twice: url becomes a variant of that document's URI and the call
// fails with domain.ErrAlreadyExists.
//
//nolint:gocyclo // Linear validation followed by dedup and creation
func (s *IngestService) SubmitFile(
	ctx context.Context, principal, url string, content []byte, mimeType string, collections []string,
) (*domain.Document, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty content", domain.ErrInvalidInput)
	}
	if _, err := domain.NormalizeURL(url); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, driven.ActionAddDocument, collections); err != nil {
		return nil, err
	}

	if mimeType == "" {
		mimeType = mimetype.Detect(content).String()
	}
	kind, ok := domain.ExtractorKindFor(mimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, domain.BaseMIMEType(mimeType))
	}

	key, err := s.blobs.Put(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}
	size := int64(len(content))

	if size > s.dedupMinSize {
		existing, err := s.docs.FindByFileIdentity(ctx, key, 0)
		switch {
		case err == nil:
			if _, err := s.resolver.AddVariant(ctx, url, existing.URIID, domain.URIStatusUnknown); err != nil &&
				!errors.Is(err, domain.ErrAlreadyExists) {
				return nil, err
			}
			return nil, fmt.Errorf("same content as %s: %w", existing.URI, domain.ErrAlreadyExists)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("find duplicate: %w", err)
		}
	}

	uri, created, err := s.resolver.AddURI(ctx, url)
	if err != nil {
		return nil, err
	}
	if !created {
		_, err := s.docs.FindByURI(ctx, uri.ID)
		switch {
		case err == nil:
			releaseBlobs(ctx, s.docs, s.blobs, key)
			return nil, fmt.Errorf("url %s: %w", uri.URI, domain.ErrAlreadyExists)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("find document: %w", err)
		}
	}

	now := s.now().UTC()
	doc := &domain.Document{
		URIID:        uri.ID,
		URI:          uri.URI,
		IsArchive:    domain.IsArchiveURL(uri.URI),
		Requested:    now,
		Retrieved:    now,
		ReturnCode:   200,
		Attempted:    true,
		MIMEType:     mimeType,
		Language:     defaultLanguage,
		AddedBy:      principal,
		FileIdentity: key,
		FileSize:     size,
		Collections:  collections,
	}
	if kind == domain.ExtractorText {
		// Plain text is its own derived text.
		doc.TextIdentity = key
		doc.TextSize = size
	}

	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := s.queue.Enqueue(ctx, domain.NewDocumentMessage(kind.Topic(), doc.ID, nil)); err != nil {
		return nil, fmt.Errorf("enqueue extraction: %w", err)
	}

	logger.Info("Stored %s (%s, %d bytes) as document %d", uri.URI, domain.BaseMIMEType(mimeType), size, doc.ID)
	return doc, nil
}

// DeleteDocument removes a document with its fragments and embeddings.
// Documents whose fragments are used elsewhere are refused with
// domain.ErrInUse.
func (s *IngestService) DeleteDocument(ctx context.Context, principal string, docID int64) error {
	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if err := s.authorize(ctx, principal, driven.ActionDeleteDocument, doc.Collections); err != nil {
		return err
	}

	inUse, err := s.docs.InUse(ctx, docID)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("document %d: %w", docID, domain.ErrInUse)
	}

	if err := s.vectors.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	if err := s.docs.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	releaseBlobs(ctx, s.docs, s.blobs, doc.FileIdentity, doc.TextIdentity)

	logger.Info("Deleted document %d (%s)", docID, doc.URI)
	return nil
}

// GetDocument retrieves a document by ID.
func (s *IngestService) GetDocument(ctx context.Context, docID int64) (*domain.Document, error) {
	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// authorize checks the action against every collection. Without
// collections the check runs once against the empty collection.
func (s *IngestService) authorize(ctx context.Context, principal, action string, collections []string) error {
	targets := collections
	if len(targets) == 0 {
		targets = []string{""}
	}

	for _, c := range targets {
		if c != "" && s.collections != nil {
			exists, err := s.collections.Exists(ctx, c)
			if err != nil {
				return fmt.Errorf("check collection %s: %w", c, err)
			}
			if !exists {
				return fmt.Errorf("collection %s: %w", c, domain.ErrNotFound)
			}
		}

		ok, err := s.auth.Can(ctx, principal, action, c)
		if err != nil {
			return fmt.Errorf("authorize %s: %w", action, err)
		}
		if !ok {
			return fmt.Errorf("%s may not %s: %w", principal, action, domain.ErrForbidden)
		}
	}
	return nil
}

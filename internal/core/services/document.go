package services

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService reads documents for display and re-enqueues pipeline stages.
type DocumentService struct {
	docs  driven.DocumentStore
	uris  driven.URIStore
	blobs driven.BlobStore
	queue driving.Enqueuer

	// open launches a URL; replaced in tests.
	open func(url string) error
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docs driven.DocumentStore,
	uris driven.URIStore,
	blobs driven.BlobStore,
	queue driving.Enqueuer,
) *DocumentService {
	return &DocumentService{
		docs:  docs,
		uris:  uris,
		blobs: blobs,
		queue: queue,
		open:  openURL,
	}
}

// List pages through documents in ascending ID order.
func (s *DocumentService) List(ctx context.Context, opts driven.ListOptions) ([]domain.Document, error) {
	docs, err := s.docs.ListDocuments(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, docID int64) (*domain.Document, error) {
	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", docID, err)
	}
	return doc, nil
}

// GetContent returns the derived text. Documents that have not been
// extracted yet return domain.ErrNotFound.
func (s *DocumentService) GetContent(ctx context.Context, docID int64) (string, error) {
	doc, err := s.Get(ctx, docID)
	if err != nil {
		return "", err
	}
	if doc.TextIdentity == "" {
		return "", fmt.Errorf("text of document %d: %w", docID, domain.ErrNotFound)
	}

	data, err := readBlob(ctx, s.blobs, doc.TextIdentity)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetDetails returns the document with its URI class and fragment count.
func (s *DocumentService) GetDetails(ctx context.Context, docID int64) (*driving.DocumentDetails, error) {
	doc, err := s.Get(ctx, docID)
	if err != nil {
		return nil, err
	}

	details := &driving.DocumentDetails{
		Document:     *doc,
		State:        doc.State(),
		CanonicalURI: doc.URI,
		Retrieved:    doc.Retrieved,
		Metadata:     make(map[string]string, len(doc.Meta)),
	}

	members, err := s.uris.Members(ctx, doc.URIID)
	if err != nil {
		return nil, fmt.Errorf("class of document %d: %w", docID, err)
	}
	for i, m := range members {
		if i == 0 {
			details.CanonicalURI = m.URI
		}
		if m.ID != doc.URIID {
			details.Equivalents = append(details.Equivalents, m)
		}
	}

	count, err := s.docs.CountFragments(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("count fragments of document %d: %w", docID, err)
	}
	details.FragmentCount = count

	for key, value := range doc.Meta {
		details.Metadata[key] = fmt.Sprintf("%v", value)
	}
	return details, nil
}

// Refresh enqueues a forced download of the document.
func (s *DocumentService) Refresh(ctx context.Context, docID int64, reparse bool) error {
	if _, err := s.Get(ctx, docID); err != nil {
		return err
	}
	params := map[string]any{domain.ParamRefetch: true}
	if reparse {
		params[domain.ParamReparse] = true
	}
	if err := s.queue.Enqueue(ctx, domain.NewDocumentMessage(domain.TopicDownload, docID, params)); err != nil {
		return fmt.Errorf("enqueue refresh: %w", err)
	}
	return nil
}

// Reparse enqueues extraction with the reparse flag. The document must
// have content.
func (s *DocumentService) Reparse(ctx context.Context, docID int64) error {
	doc, err := s.Get(ctx, docID)
	if err != nil {
		return err
	}
	if doc.FileIdentity == "" {
		return fmt.Errorf("%w: document %d has no content", domain.ErrInvalidInput, docID)
	}

	kind, ok := domain.ExtractorKindFor(doc.MIMEType)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedType, doc.MIMEType)
	}
	msg := domain.NewDocumentMessage(kind.Topic(), docID, map[string]any{domain.ParamReparse: true})
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue reparse: %w", err)
	}
	return nil
}

// Open opens the document in the default application.
func (s *DocumentService) Open(ctx context.Context, docID int64) error {
	doc, err := s.Get(ctx, docID)
	if err != nil {
		return err
	}
	return s.open(convertToOpenableURL(doc.URI))
}

// openURL opens a URL/path using the system default handler.
func openURL(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// convertToOpenableURL converts stored URIs to browser-openable URLs.
func convertToOpenableURL(uri string) string {
	// file:///path/to/file -> /path/to/file
	if strings.HasPrefix(uri, "file://") {
		return strings.TrimPrefix(uri, "file://")
	}
	// doi:10.1000/182 -> https://doi.org/10.1000/182
	if strings.HasPrefix(uri, "doi:") {
		return "https://doi.org/" + strings.TrimPrefix(uri, "doi:")
	}
	return uri
}

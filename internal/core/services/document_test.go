package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

func (e *testEnv) documentService() *DocumentService {
	return NewDocumentService(e.docs, e.uris, e.blobs, e.queue)
}

func TestDocumentService_List(t *testing.T) {
	env := newTestEnv(t)
	env.createDocument(t, "https://a.example/", "climate")
	env.createDocument(t, "https://b.example/")
	env.extractedDocument(t, "https://c.example/", []string{"some text"}, "climate")
	svc := env.documentService()
	ctx := context.Background()

	tests := []struct {
		name string
		opts driven.ListOptions
		want []string
	}{
		{"all", driven.ListOptions{}, []string{"https://a.example/", "https://b.example/", "https://c.example/"}},
		{"collection", driven.ListOptions{Collection: "climate"}, []string{"https://a.example/", "https://c.example/"}},
		{"with text", driven.ListOptions{WithText: true}, []string{"https://c.example/"}},
		{"page", driven.ListOptions{Limit: 1}, []string{"https://a.example/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := svc.List(ctx, tt.opts)
			require.NoError(t, err)
			var got []string
			for _, d := range docs {
				got = append(got, d.URI)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentService_GetContent(t *testing.T) {
	env := newTestEnv(t)
	doc, _ := env.extractedDocument(t, "https://a.example/", []string{"first", "second"})
	pending := env.createDocument(t, "https://b.example/")
	svc := env.documentService()
	ctx := context.Background()

	text, err := svc.GetContent(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", text)

	_, err = svc.GetContent(ctx, pending.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetContent(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_GetDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc, _ := env.extractedDocument(t, "https://a.example/", []string{"one", "two", "three"})
	doc.Meta = map[string]any{"source": "feed", "rank": 3}
	require.NoError(t, env.docs.UpdateDocument(ctx, doc))

	mirror, err := env.resolver.AddVariant(ctx, "https://mirror.example/a", doc.URIID, domain.URIStatusAlt)
	require.NoError(t, err)

	details, err := env.documentService().GetDetails(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, details.Document.ID)
	assert.Equal(t, domain.DocumentStateExtracted, details.State)
	assert.Equal(t, "https://a.example/", details.CanonicalURI)
	require.Len(t, details.Equivalents, 1)
	assert.Equal(t, mirror.ID, details.Equivalents[0].ID)
	assert.Equal(t, 3, details.FragmentCount)
	assert.Equal(t, map[string]string{"source": "feed", "rank": "3"}, details.Metadata)
}

func TestDocumentService_GetDetails_PromotedMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.createDocument(t, "https://a.example/")
	canonical, err := env.resolver.AddVariant(ctx, "https://canonical.example/a", doc.URIID, domain.URIStatusCanonical)
	require.NoError(t, err)

	details, err := env.documentService().GetDetails(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentStateSubmitted, details.State)
	assert.Equal(t, canonical.URI, details.CanonicalURI)
	require.Len(t, details.Equivalents, 1)
	assert.Equal(t, canonical.ID, details.Equivalents[0].ID)
	assert.Zero(t, details.FragmentCount)
}

func TestDocumentService_Refresh(t *testing.T) {
	tests := []struct {
		name    string
		reparse bool
		want    map[string]any
	}{
		{"refetch only", false, map[string]any{domain.ParamRefetch: true}},
		{"refetch and reparse", true, map[string]any{domain.ParamRefetch: true, domain.ParamReparse: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			doc := env.createDocument(t, "https://a.example/")

			require.NoError(t, env.documentService().Refresh(context.Background(), doc.ID, tt.reparse))

			require.Len(t, env.queue.msgs, 1)
			msg := env.queue.msgs[0]
			assert.Equal(t, domain.TopicDownload, msg.Topic)
			assert.Equal(t, itoa(doc.ID), msg.Payload)
			assert.Equal(t, tt.want, msg.Params)
		})
	}
}

func TestDocumentService_Refresh_NotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.documentService().Refresh(context.Background(), 42, false)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, env.queue.msgs)
}

func TestDocumentService_Reparse(t *testing.T) {
	env := newTestEnv(t)
	doc, _ := env.extractedDocument(t, "https://a.example/", []string{"text"})
	pending := env.createDocument(t, "https://b.example/")
	svc := env.documentService()
	ctx := context.Background()

	require.NoError(t, svc.Reparse(ctx, doc.ID))
	require.Len(t, env.queue.msgs, 1)
	assert.Equal(t, domain.TopicProcessText, env.queue.msgs[0].Topic)
	assert.Equal(t, map[string]any{domain.ParamReparse: true}, env.queue.msgs[0].Params)

	err := svc.Reparse(ctx, pending.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentService_Open(t *testing.T) {
	env := newTestEnv(t)
	doc := env.createDocument(t, "https://a.example/page")
	svc := env.documentService()
	var opened string
	svc.open = func(url string) error {
		opened = url
		return nil
	}

	require.NoError(t, svc.Open(context.Background(), doc.ID))
	assert.Equal(t, "https://a.example/page", opened)
}

func TestConvertToOpenableURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"file:///tmp/report.pdf", "/tmp/report.pdf"},
		{"doi:10.1000/182", "https://doi.org/10.1000/182"},
		{"https://a.example/", "https://a.example/"},
		{"upload://x", "upload://x"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, convertToOpenableURL(tt.in))
		})
	}
}

package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

func TestIngestService_SubmitURL(t *testing.T) {
	env := newTestEnv(t)
	auth := &mockAuthorizer{}
	svc := env.ingestService(auth, nil, 1000)
	ctx := context.Background()

	doc, err := svc.SubmitURL(ctx, "alice", "https://News.Example/story/?utm_source=x#top", nil)

	require.NoError(t, err)
	assert.NotZero(t, doc.ID)
	assert.Equal(t, "https://news.example/story", doc.URI)
	assert.Equal(t, "alice", doc.AddedBy)
	assert.Equal(t, domain.DocumentStateSubmitted, doc.State())
	assert.Equal(t, []string{itoa(doc.ID)}, env.queue.payloads(domain.TopicDownload))
	assert.Equal(t, []string{driven.ActionAddDocument + ":"}, auth.checks)

	_, err = svc.SubmitURL(ctx, "alice", "https://news.example/story", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Len(t, env.queue.payloads(domain.TopicDownload), 1)
}

func TestIngestService_SubmitURL_Rejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		principal   string
		url         string
		collections []string
		wantErr     error
	}{
		{"not http", "alice", "ftp://files.example/a", nil, domain.ErrInvalidInput},
		{"no host", "alice", "https://", nil, domain.ErrInvalidInput},
		{"forbidden", "mallory", "https://a.example/", nil, domain.ErrForbidden},
		{"unknown collection", "alice", "https://a.example/", []string{"nope"}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			auth := &mockAuthorizer{denied: map[string]bool{"mallory": true}}
			svc := env.ingestService(auth, mockCollections{"climate": nil}, 1000)

			_, err := svc.SubmitURL(ctx, tt.principal, tt.url, tt.collections)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.queue.msgs)
		})
	}
}

func TestIngestService_SubmitURL_Collections(t *testing.T) {
	env := newTestEnv(t)
	auth := &mockAuthorizer{}
	svc := env.ingestService(auth, mockCollections{"climate": nil, "news": nil}, 1000)

	doc, err := svc.SubmitURL(context.Background(), "alice", "https://a.example/", []string{"climate", "news"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"climate", "news"}, doc.Collections)
	assert.Equal(t, []string{
		driven.ActionAddDocument + ":climate",
		driven.ActionAddDocument + ":news",
	}, auth.checks)
}

func TestIngestService_SubmitURLs(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 1000)
	ctx := context.Background()

	docs, err := svc.SubmitURLs(ctx, "alice", []string{
		"https://a.example/x",
		"https://A.example/x/",
		"mailto:someone@example.com",
		"https://b.example/",
	}, nil)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://a.example/x", docs[0].URI)
	assert.Equal(t, "https://b.example/", docs[1].URI)
	assert.Len(t, env.queue.payloads(domain.TopicDownload), 2)

	// Known URLs are skipped without error.
	docs, err = svc.SubmitURLs(ctx, "alice", []string{"https://a.example/x"}, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestService_SubmitURL_ArchiveSnapshot(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 1000)
	ctx := context.Background()

	page, err := svc.SubmitURL(ctx, "alice", "https://example.com/page", nil)
	require.NoError(t, err)

	snapshot, err := svc.SubmitURL(ctx, "alice", "https://web.archive.org/web/2020/https://example.com/page", nil)
	require.NoError(t, err)

	assert.True(t, snapshot.IsArchive)
	u, err := env.uris.GetURI(ctx, snapshot.URIID)
	require.NoError(t, err)
	assert.Equal(t, domain.URIStatusSnapshot, u.Status)
	assert.Equal(t, page.URIID, u.RootID())
}

func TestIngestService_SubmitFile_Text(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 1000)
	content := []byte("Plain notes about the river flooding in spring.\n")

	doc, err := svc.SubmitFile(context.Background(), "alice", "upload://notes.txt", content, "", nil)

	require.NoError(t, err)
	assert.True(t, doc.Attempted)
	assert.Equal(t, 200, doc.ReturnCode)
	assert.Equal(t, "text/plain", doc.BaseMIMEType())
	assert.Equal(t, domain.ContentKey(content), doc.FileIdentity)
	assert.Equal(t, doc.FileIdentity, doc.TextIdentity, "plain text is its own derived text")
	assert.Equal(t, domain.DocumentStateExtracted, doc.State())
	assert.Equal(t, []string{itoa(doc.ID)}, env.queue.payloads(domain.TopicProcessText))
}

func TestIngestService_SubmitFile_HTML(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 1000)

	doc, err := svc.SubmitFile(context.Background(), "alice", "https://a.example/page",
		[]byte("<html><body><p>Hello</p></body></html>"), "text/html; charset=utf-8", nil)

	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStateFetched, doc.State())
	assert.Equal(t, []string{itoa(doc.ID)}, env.queue.payloads(domain.TopicProcessHTML))
}

func TestIngestService_SubmitFile_Rejected(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(&mockAuthorizer{denied: map[string]bool{"mallory": true}}, nil, 1000)
	ctx := context.Background()

	_, err := svc.SubmitFile(ctx, "alice", "upload://empty.txt", nil, "text/plain", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SubmitFile(ctx, "alice", "upload://image.png", []byte("\x89PNG\r\n\x1a\n"), "image/png", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = svc.SubmitFile(ctx, "mallory", "upload://notes.txt", []byte("text"), "text/plain", nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Zero(t, env.blobs.Len())
}

func TestIngestService_SubmitFile_DuplicateContent(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 10)
	ctx := context.Background()
	content := []byte(strings.Repeat("The same report, uploaded twice. ", 4))

	first, err := svc.SubmitFile(ctx, "alice", "https://a.example/report", content, "text/plain", nil)
	require.NoError(t, err)

	_, err = svc.SubmitFile(ctx, "alice", "https://mirror.example/report", content, "text/plain", nil)
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	// The second URL joined the class of the first as an alternate.
	members, err := env.uris.Members(ctx, first.URIID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "https://mirror.example/report", members[1].URI)
	assert.Equal(t, domain.URIStatusAlt, members[1].Status)
	assert.Len(t, env.queue.payloads(domain.TopicProcessText), 1)
}

func TestIngestService_SubmitFile_URLReplacesURNRoot(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 10)
	ctx := context.Background()
	content := []byte(strings.Repeat("Chapter one of a book known by its ISBN. ", 60))

	first, err := svc.SubmitFile(ctx, "alice", "urn:isbn:9780000000001", content, "text/plain", nil)
	require.NoError(t, err)

	_, err = svc.SubmitFile(ctx, "alice", "https://books.example/title", content, "text/plain", nil)
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	members, err := env.uris.Members(ctx, first.URIID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	root, urn := members[0], members[1]
	assert.Equal(t, "https://books.example/title", root.URI)
	assert.Equal(t, domain.URIStatusCanonical, root.Status)
	assert.True(t, root.IsRoot())
	assert.Equal(t, first.URIID, urn.ID)
	assert.Equal(t, domain.URIStatusURN, urn.Status)
	require.NotNil(t, urn.CanonicalID)
	assert.Equal(t, root.ID, *urn.CanonicalID)
}

func TestIngestService_SubmitFile_SmallDuplicatesKept(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 1000)
	ctx := context.Background()

	a, err := svc.SubmitFile(ctx, "alice", "upload://a.txt", []byte("short"), "text/plain", nil)
	require.NoError(t, err)
	b, err := svc.SubmitFile(ctx, "alice", "upload://b.txt", []byte("short"), "text/plain", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.FileIdentity, b.FileIdentity)
}

func TestIngestService_SubmitFile_KnownURL(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 1000)
	ctx := context.Background()

	_, err := svc.SubmitFile(ctx, "alice", "upload://a.txt", []byte("first"), "text/plain", nil)
	require.NoError(t, err)

	_, err = svc.SubmitFile(ctx, "alice", "upload://a.txt", []byte("second"), "text/plain", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	exists, err := env.blobs.Exists(ctx, domain.ContentKey([]byte("second")))
	require.NoError(t, err)
	assert.False(t, exists, "unreferenced upload is released")
}

func TestIngestService_DeleteDocument(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(&mockAuthorizer{denied: map[string]bool{"mallory": true}}, nil, 1000)
	ctx := context.Background()

	doc, ids := env.extractedDocument(t, "https://a.example/", []string{"alpha"})
	env.saveVector(t, doc.ID, ids[0], []float32{1, 0, 0})

	err := svc.DeleteDocument(ctx, "mallory", doc.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, svc.DeleteDocument(ctx, "alice", doc.ID))

	_, err = svc.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	exists, err := env.blobs.Exists(ctx, doc.FileIdentity)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = env.vectors.Exists(ctx, domain.DefaultBaseModel, domain.FragmentTarget(ids[0]))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIngestService_DeleteDocument_InUse(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestService(nil, nil, 1000)
	ctx := context.Background()

	doc, ids := env.extractedDocument(t, "https://a.example/", []string{"alpha"})
	require.NoError(t, env.docs.CreateFragment(ctx, &domain.Fragment{
		Text:           "A claim built on alpha",
		Scale:          domain.FragmentTypeGenerated,
		GenerationData: &domain.GenerationData{Sources: []int64{ids[0]}},
	}))

	err := svc.DeleteDocument(ctx, "alice", doc.ID)

	assert.ErrorIs(t, err, domain.ErrInUse)
	_, err = svc.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
}

func TestIngestService_DeleteDocument_NotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.ingestService(nil, nil, 1000).DeleteDocument(context.Background(), "alice", 4242)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

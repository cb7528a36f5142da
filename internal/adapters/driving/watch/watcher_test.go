package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// mockIngest records SubmitFile calls.
type mockIngest struct {
	mu        sync.Mutex
	urls      []string
	contents  map[string]string
	principal string
	err       error
	submitted chan string
}

func newMockIngest() *mockIngest {
	return &mockIngest{contents: make(map[string]string), submitted: make(chan string, 16)}
}

func (m *mockIngest) SubmitURL(context.Context, string, string, []string) (*domain.Document, error) {
	return nil, nil
}

func (m *mockIngest) SubmitURLs(context.Context, string, []string, []string) ([]domain.Document, error) {
	return nil, nil
}

func (m *mockIngest) SubmitFile(
	_ context.Context, principal, url string, content []byte, _ string, _ []string,
) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.principal = principal
	m.urls = append(m.urls, url)
	m.contents[url] = string(content)
	m.submitted <- url
	return &domain.Document{ID: int64(len(m.urls)), URI: url}, nil
}

func (m *mockIngest) DeleteDocument(context.Context, string, int64) error {
	return nil
}

func (m *mockIngest) GetDocument(context.Context, int64) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (m *mockIngest) sortedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.urls...)
	sort.Strings(out)
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWatcher_Scan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "notes", "b.md"), "beta")
	writeFile(t, filepath.Join(dir, "image.png"), "png")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "hidden")
	writeFile(t, filepath.Join(dir, ".git", "c.txt"), "git")
	writeFile(t, filepath.Join(dir, "empty.txt"), "")

	ingest := newMockIngest()
	w := New(ingest, Config{
		Dir:       dir,
		Include:   []string{"**/*.txt", "**/*.md"},
		Principal: "inbox",
	})

	count, err := w.Scan(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{
		fileURL(filepath.Join(dir, "a.txt")),
		fileURL(filepath.Join(dir, "notes", "b.md")),
	}, ingest.sortedURLs())
	assert.Equal(t, "inbox", ingest.principal)
	assert.Equal(t, "alpha", ingest.contents[fileURL(filepath.Join(dir, "a.txt"))])
}

func TestWatcher_ScanSkipsKnownContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")

	ingest := newMockIngest()
	ingest.err = domain.ErrAlreadyExists
	w := New(ingest, Config{Dir: dir})

	count, err := w.Scan(context.Background())

	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWatcher_ScanMissingDir(t *testing.T) {
	w := New(newMockIngest(), Config{Dir: "/non/existent/path"})

	_, err := w.Scan(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "inbox directory")
}

func TestWatcher_matches(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		include []string
		path    string
		want    bool
	}{
		{"no include matches all", nil, "x/y.bin", true},
		{"top level txt", []string{"*.txt"}, "a.txt", true},
		{"single star is one level", []string{"*.txt"}, "sub/a.txt", false},
		{"double star recurses", []string{"**/*.txt"}, "sub/deeper/a.txt", true},
		{"second pattern", []string{"*.txt", "papers/*.pdf"}, "papers/p.pdf", true},
		{"no match", []string{"**/*.pdf"}, "a.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(newMockIngest(), Config{Dir: dir, Include: tt.include})
			assert.Equal(t, tt.want, w.matches(filepath.Join(dir, filepath.FromSlash(tt.path))))
		})
	}
}

func TestWatcher_eligible(t *testing.T) {
	tests := []struct {
		name      string
		setupFile bool
		setupDir  bool
		hidden    bool
		operation fsnotify.Op
		want      bool
	}{
		{name: "create file", setupFile: true, operation: fsnotify.Create, want: true},
		{name: "write file", setupFile: true, operation: fsnotify.Write, want: true},
		{name: "write and chmod", setupFile: true, operation: fsnotify.Write | fsnotify.Chmod, want: true},
		{name: "chmod only", setupFile: true, operation: fsnotify.Chmod, want: false},
		{name: "remove", operation: fsnotify.Remove, want: false},
		{name: "rename", operation: fsnotify.Rename, want: false},
		{name: "directory", setupDir: true, operation: fsnotify.Create, want: false},
		{name: "hidden file", hidden: true, operation: fsnotify.Create, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "test.txt")
			switch {
			case tt.setupDir:
				path = filepath.Join(dir, "testdir")
				require.NoError(t, os.Mkdir(path, 0755))
			case tt.hidden:
				path = filepath.Join(dir, ".hidden.txt")
				writeFile(t, path, "hidden")
			case tt.setupFile:
				writeFile(t, path, "content")
			}

			w := New(newMockIngest(), Config{Dir: dir})
			got, ok := w.eligible(fsnotify.Event{Name: path, Op: tt.operation})

			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, path, got)
			}
		})
	}
}

func TestWatcher_Run(t *testing.T) {
	t.Run("submits new files after they settle", func(t *testing.T) {
		dir := t.TempDir()
		ingest := newMockIngest()
		w := New(ingest, Config{Dir: dir, Include: []string{"**/*.txt"}, Settle: 20 * time.Millisecond})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		path := filepath.Join(dir, "new-file.txt")
		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = os.WriteFile(path, []byte("content"), 0644)
		}()

		select {
		case url := <-ingest.submitted:
			assert.Equal(t, fileURL(path), url)
		case <-time.After(3 * time.Second):
			t.Fatal("timeout waiting for submission")
		}

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("watcher did not stop after cancellation")
		}
	})

	t.Run("returns error for missing directory", func(t *testing.T) {
		w := New(newMockIngest(), Config{Dir: "/non/existent/path"})

		err := w.Run(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "inbox directory")
	})
}

func TestFileURL(t *testing.T) {
	dir := t.TempDir()
	abs, err := filepath.Abs(filepath.Join(dir, "a b.txt"))
	require.NoError(t, err)

	assert.Equal(t, "file://"+filepath.ToSlash(abs), fileURL(filepath.Join(dir, "a b.txt")))
}

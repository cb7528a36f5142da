// Package watch submits files dropped into an inbox directory.
//
// The watcher follows a directory tree with fsnotify. Regular files whose
// path relative to the directory matches one of the include globs are
// submitted once their writes settle. Hidden files and directories are
// ignored.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Defaults.
const (
	DefaultSettle      = 500 * time.Millisecond
	DefaultMaxFileSize = 64 << 20
)

// Config configures a Watcher.
type Config struct {
	// Dir is the inbox directory (required).
	Dir string

	// Include are doublestar patterns matched against slash-separated
	// paths relative to Dir. Empty matches every file.
	Include []string

	// Principal is recorded as the submitter.
	Principal string

	// Collections tag every submitted document.
	Collections []string

	// Settle is the quiet period after the last write before a file is
	// submitted (default: 500ms).
	Settle time.Duration

	// MaxFileSize skips larger files (default: 64 MiB).
	MaxFileSize int64
}

// Watcher submits new and changed files from a directory tree.
type Watcher struct {
	cfg    Config
	ingest driving.IngestService

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher. It does nothing until Scan or Run is called.
func New(ingest driving.IngestService, cfg Config) *Watcher {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &Watcher{
		cfg:     cfg,
		ingest:  ingest,
		pending: make(map[string]*time.Timer),
	}
}

// Scan submits every matching file already in the directory and returns
// the number of documents created.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	if err := w.checkDir(); err != nil {
		return 0, err
	}

	count := 0
	err := filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != w.cfg.Dir && w.hidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !w.matches(path) {
			return nil
		}
		created, err := w.submit(ctx, path)
		if err != nil {
			return err
		}
		if created {
			count++
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("scan %s: %w", w.cfg.Dir, err)
	}
	return count, nil
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.checkDir(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.cfg.Dir); err != nil {
		return err
	}
	logger.Info("Watching %s", w.cfg.Dir)

	defer w.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && !w.hidden(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						logger.Warn("watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			if path, ok := w.eligible(event); ok {
				w.schedule(ctx, path)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) checkDir() error {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("inbox directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.cfg.Dir)
	}
	return nil
}

// addTree watches dir and its visible subdirectories.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.cfg.Dir && w.hidden(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// eligible reports whether an event should lead to a submission.
func (w *Watcher) eligible(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if w.hidden(event.Name) || !w.matches(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

// schedule submits path once no event for it arrived during Settle.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.submit(ctx, path); err != nil {
			logger.Error(err, "submit %s", path)
		}
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// submit sends one file to ingestion. Known content and URLs are not
// errors; they report created=false.
func (w *Watcher) submit(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	if info.Size() > w.cfg.MaxFileSize {
		logger.Warn("Skipping %s: %d bytes exceeds limit", path, info.Size())
		return false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	_, err = w.ingest.SubmitFile(ctx, w.cfg.Principal, fileURL(path), content, "", w.cfg.Collections)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrAlreadyExists):
		logger.Debug("Skipping %s: %v", path, err)
		return false, nil
	case errors.Is(err, domain.ErrUnsupportedType):
		logger.Warn("Skipping %s: %v", path, err)
		return false, nil
	default:
		return false, err
	}
}

// matches reports whether path is selected by the include globs.
func (w *Watcher) matches(path string) bool {
	if len(w.cfg.Include) == 0 {
		return true
	}
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.cfg.Include {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// hidden reports whether any element of path below Dir starts with a dot.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}

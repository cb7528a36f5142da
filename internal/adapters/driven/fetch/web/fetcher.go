// Package web provides the HTTP fetcher used by the download stage.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.Fetcher = (*Fetcher)(nil)

// Default configuration values.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultUserAgent    = "claimminer/1.0"
	DefaultMaxBodySize  = 64 << 20
	DefaultMaxRedirects = 10
)

// Config holds configuration for the fetcher.
type Config struct {
	// Timeout bounds one download including redirects (default: 60s).
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize truncates larger bodies (default: 64 MiB).
	MaxBodySize int64
}

// Fetcher downloads documents with net/http.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= DefaultMaxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		userAgent:   cfg.UserAgent,
		maxBodySize: cfg.MaxBodySize,
	}
}

// Fetch performs a GET. Non-2xx responses are returned with their body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*driven.FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &driven.FetchResponse{
		StatusCode:      resp.StatusCode,
		Body:            body,
		ContentType:     resp.Header.Get("Content-Type"),
		ContentLanguage: resp.Header.Get("Content-Language"),
		ETag:            resp.Header.Get("ETag"),
		FinalURL:        resp.Request.URL.String(),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			out.LastModified = t.UTC()
		}
	}
	return out, nil
}

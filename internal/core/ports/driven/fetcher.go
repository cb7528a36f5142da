package driven

import (
	"context"
	"time"
)

// Fetcher downloads a resource over the network, following redirects.
type Fetcher interface {
	// Fetch performs a GET. Non-2xx responses are returned, not errors;
	// an error means no response was received.
	Fetch(ctx context.Context, url string) (*FetchResponse, error)
}

// FetchResponse is the result of one download.
type FetchResponse struct {
	StatusCode      int
	Body            []byte
	ContentType     string
	ContentLanguage string
	ETag            string

	// LastModified is zero when the header is absent or unparseable.
	LastModified time.Time

	// FinalURL is the URL after redirects.
	FinalURL string
}

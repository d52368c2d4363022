package downloader

import (
	"context"
	"io"
)

// Downloader fetches remote content over HTTP.
type Downloader interface {
	// Download streams media from url, returning the body reader and its size
	// (-1 when unknown). Caller is responsible for closing the reader.
	Download(ctx context.Context, url string) (io.ReadCloser, int64, error)

	// Resolve follows redirects and returns the final URL.
	Resolve(ctx context.Context, url string) (string, error)

	// FetchPage returns the body of a page, capped at the configured size.
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

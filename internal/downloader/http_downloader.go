package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/domain"
)

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests (Resolve, FetchPage) with overall timeout
	client *http.Client
	// streamClient is used for streaming downloads without overall timeout
	streamClient *http.Client
	userAgent    string
	retry        RetryConfig
	cfg          config.DownloadConfig
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP downloader.
func NewHTTPDownloader(cfg config.DownloadConfig, logger *slog.Logger) *HTTPDownloader {
	if logger == nil {
		logger = slog.Default()
	}

	// Transport for streaming downloads - no overall timeout, but header timeout
	streamTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		retry.MaxDelay = cfg.MaxRetryDelay
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
			// No Timeout - stalls are caught by progressReader
		},
		userAgent: cfg.UserAgent,
		retry:     retry,
		cfg:       cfg,
		logger:    logger,
	}
}

// Download fetches media from URL with retry logic.
// Returns a progress-tracking reader for large file streaming.
func (d *HTTPDownloader) Download(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	type result struct {
		reader io.ReadCloser
		size   int64
	}

	res, err := RetryWithCheck(ctx, d.retry, func() (result, error) {
		r, size, err := d.downloadOnce(ctx, url)
		return result{reader: r, size: size}, err
	}, isRetryableError)
	if err != nil {
		return nil, 0, fmt.Errorf("download failed: %w", err)
	}

	return res.reader, res.size, nil
}

func (d *HTTPDownloader) downloadOnce(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := d.newRequest(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}

	if err := statusError(resp); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if parsed, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = parsed
			}
		}
	}

	return newProgressReader(resp.Body, size, d.cfg.ReadTimeout, d.logger, url), size, nil
}

// Resolve follows redirects (e.g. short links) and returns the final URL.
func (d *HTTPDownloader) Resolve(ctx context.Context, url string) (string, error) {
	req, err := d.newRequest(ctx, url)
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.Request == nil || resp.Request.URL == nil {
		return url, nil
	}
	return resp.Request.URL.String(), nil
}

// FetchPage returns the body of url, read up to the configured page size.
func (d *HTTPDownloader) FetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := d.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	limit := d.cfg.MaxPageBytes
	if limit <= 0 {
		limit = 4 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return body, nil
}

func (d *HTTPDownloader) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	return req, nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrURLExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

func isRetryableError(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	if errors.Is(err, domain.ErrURLExpired) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// ErrStalled is returned by a download stream that received no data for
// the configured read timeout.
var ErrStalled = errors.New("download stalled")

// progressReader wraps an io.ReadCloser to track download progress
// and detect stalls (no data for readTimeout).
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	watchdog    *time.Timer
	stalled     atomic.Bool
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	p := &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastLog:     time.Now(),
		logger:      logger,
		url:         url,
	}
	if readTimeout > 0 {
		// Closing the body unblocks a Read that is waiting on the network.
		p.watchdog = time.AfterFunc(readTimeout, func() {
			p.stalled.Store(true)
			p.reader.Close()
		})
	}
	return p
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	if p.stalled.Load() {
		return n, fmt.Errorf("%w: no data received for %v", ErrStalled, p.readTimeout)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.downloaded += int64(n)
		if p.watchdog != nil {
			p.watchdog.Reset(p.readTimeout)
		}

		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.watchdog != nil {
		p.watchdog.Stop()
	}
	if p.downloaded > 0 {
		p.logProgress()
	}
	p.mu.Unlock()

	return p.reader.Close()
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Debug("download progress",
			"url", p.url,
			"downloaded_kb", p.downloaded/1024,
			"total_kb", p.total/1024,
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Debug("download progress",
			"url", p.url,
			"downloaded_kb", p.downloaded/1024,
		)
	}
}

// Package ytdlp wraps the yt-dlp command line extractor.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/iconidentify/clipgrab/internal/config"
)

// Info is the subset of yt-dlp's JSON metadata the bot uses.
type Info struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	WebpageURL  string  `json:"webpage_url"`
	Extractor   string  `json:"extractor_key"`
}

// Client runs yt-dlp.
type Client struct {
	path    string
	format  string
	timeout time.Duration
}

// NewClient creates a yt-dlp client.
// It resolves the configured binary in PATH.
func NewClient(cfg config.YTDLPConfig) (*Client, error) {
	path, err := exec.LookPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found: %w", err)
	}

	return &Client{
		path:    path,
		format:  cfg.Format,
		timeout: cfg.Timeout,
	}, nil
}

// Format returns the configured format selector.
func (c *Client) Format() string {
	return c.format
}

// Metadata fetches structured metadata for url without downloading media.
func (c *Client) Metadata(ctx context.Context, url string) (*Info, error) {
	out, err := c.run(ctx,
		"--dump-single-json",
		"--skip-download",
		"--flat-playlist",
		"--no-warnings",
		"--no-check-certificates",
		"--no-playlist",
		url,
	)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	return &info, nil
}

// Download writes the media for url to outPath using format, or the
// configured format when format is empty.
func (c *Client) Download(ctx context.Context, url, outPath, format string) error {
	if format == "" {
		format = c.format
	}

	args := []string{
		"--no-warnings",
		"--no-check-certificates",
		"--no-playlist",
		"--no-part",
		"--force-overwrites",
		"--quiet",
		"-o", outPath,
	}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, url)

	_, err := c.run(ctx, args...)
	return err
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp: %w", ctx.Err())
		}
		return nil, &ExitError{Err: err, Stderr: lastLine(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// ExitError is returned when yt-dlp exits unsuccessfully.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return "yt-dlp: " + e.Stderr
	}
	return "yt-dlp: " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

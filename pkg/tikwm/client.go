// Package tikwm is a client for the tikwm.com watermark-free lookup API.
package tikwm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/domain"
)

// Video is a resolved TikTok post.
type Video struct {
	ID        string
	Title     string
	PlayURL   string // watermark-free
	HDPlayURL string
	Duration  int
	Author    string
}

// BestURL returns the HD URL when present, else the standard one.
func (v *Video) BestURL() string {
	if v.HDPlayURL != "" {
		return v.HDPlayURL
	}
	return v.PlayURL
}

// Client queries the lookup API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new lookup client.
func NewClient(cfg config.TikWMConfig, userAgent string) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: userAgent,
	}
}

type lookupResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Play     string `json:"play"`
		WMPlay   string `json:"wmplay"`
		HDPlay   string `json:"hdplay"`
		Duration int    `json:"duration"`
		Author   struct {
			UniqueID string `json:"unique_id"`
			Nickname string `json:"nickname"`
		} `json:"author"`
	} `json:"data"`
}

// Lookup resolves a TikTok post URL into its caption and media URLs.
func (c *Client) Lookup(ctx context.Context, videoURL string) (*Video, error) {
	q := url.Values{}
	q.Set("url", videoURL)
	q.Set("hd", "1")
	endpoint := c.baseURL + "/api/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if lr.Code != 0 {
		return nil, fmt.Errorf("%w: %s (code %d)", domain.ErrLookupFailed, lr.Msg, lr.Code)
	}
	if lr.Data == nil {
		return nil, fmt.Errorf("%w: empty data", domain.ErrLookupFailed)
	}

	v := &Video{
		ID:        lr.Data.ID,
		Title:     strings.TrimSpace(lr.Data.Title),
		PlayURL:   c.absolute(lr.Data.Play),
		HDPlayURL: c.absolute(lr.Data.HDPlay),
		Duration:  lr.Data.Duration,
		Author:    lr.Data.Author.UniqueID,
	}
	return v, nil
}

// absolute resolves media paths the API returns relative to its own host.
func (c *Client) absolute(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.baseURL + u
}


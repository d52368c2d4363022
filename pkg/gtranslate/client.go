// Package gtranslate is a minimal client for Google's public gtx translate endpoint.
package gtranslate

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

// MaxChunkRunes bounds the text sent in one request so the encoded query stays
// within URL length limits.
const MaxChunkRunes = 1800

// Client translates text.
type Client struct {
	baseURL    string
	source     string
	httpClient *http.Client
}

// NewClient creates a translate client.
func NewClient(cfg config.TranslateConfig) *Client {
	source := cfg.SourceLocale
	if source == "" {
		source = "auto"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		source:  source,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Translate converts text into the target locale. Long text is sent in
// line-aligned chunks; any chunk failure fails the whole call.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	var out strings.Builder
	for _, chunk := range SplitChunks(text, MaxChunkRunes) {
		translated, err := c.translateChunk(ctx, chunk, target)
		if err != nil {
			return "", err
		}
		out.WriteString(translated)
	}
	return out.String(), nil
}

func (c *Client) translateChunk(ctx context.Context, text, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", c.source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)
	endpoint := c.baseURL + "/translate_a/single?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %w", domain.ErrTranslationFailed, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrTranslationFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw []any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrTranslationFailed, err)
	}

	return parseSegments(raw)
}

// parseSegments joins the translated segments of a gtx response:
// [[["translated","original",...],...],...]
func parseSegments(raw []any) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty response", domain.ErrTranslationFailed)
	}
	segments, ok := raw[0].([]any)
	if !ok {
		return "", fmt.Errorf("%w: unexpected response shape", domain.ErrTranslationFailed)
	}

	var sb strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no translated text", domain.ErrTranslationFailed)
	}
	return sb.String(), nil
}

// SplitChunks splits text into pieces of at most max runes, preferring line
// boundaries. Concatenating the chunks yields text.
func SplitChunks(text string, max int) []string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

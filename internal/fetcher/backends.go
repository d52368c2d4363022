package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/iconidentify/clipgrab/internal/domain"
	"github.com/iconidentify/clipgrab/internal/downloader"
	"github.com/iconidentify/clipgrab/pkg/tikwm"
)

// HTTPSource is the HTTP surface the backends need.
type HTTPSource interface {
	downloader.Downloader
}

// LookupSource queries a watermark-free lookup API.
type LookupSource interface {
	Lookup(ctx context.Context, url string) (*tikwm.Video, error)
}

// ToolRunner downloads media to a file with an external extractor.
type ToolRunner interface {
	Download(ctx context.Context, url, outPath, format string) error
}

// LookupBackend resolves short links, asks the lookup API for a direct
// media URL and streams it.
type LookupBackend struct {
	http   HTTPSource
	lookup LookupSource
}

// NewLookupBackend creates a LookupBackend.
func NewLookupBackend(http HTTPSource, lookup LookupSource) *LookupBackend {
	return &LookupBackend{http: http, lookup: lookup}
}

func (b *LookupBackend) Name() string { return "tikwm" }

func (b *LookupBackend) Fetch(ctx context.Context, req domain.MediaRequest, sink Sink) error {
	target := req.URL
	if resolved, err := b.http.Resolve(ctx, req.URL); err == nil && resolved != "" {
		target = resolved
	} else if ctx.Err() != nil {
		return domain.NewBackendError(b.Name(), "resolve", ctx.Err())
	}

	video, err := b.lookup.Lookup(ctx, target)
	if err != nil {
		return domain.NewBackendError(b.Name(), "lookup", err)
	}
	mediaURL := video.BestURL()
	if mediaURL == "" {
		return domain.NewBackendError(b.Name(), "lookup", domain.ErrNoMediaURL)
	}

	if err := stream(ctx, b.http, mediaURL, sink); err != nil {
		return domain.NewBackendError(b.Name(), "stream", err)
	}
	return nil
}

// ToolBackend runs the structured extractor, which writes the output file
// itself.
type ToolBackend struct {
	runner ToolRunner
	format string
}

// NewToolBackend creates a ToolBackend using the given format selector.
func NewToolBackend(runner ToolRunner, format string) *ToolBackend {
	return &ToolBackend{runner: runner, format: format}
}

func (b *ToolBackend) Name() string { return "ytdlp" }

func (b *ToolBackend) Fetch(ctx context.Context, req domain.MediaRequest, sink Sink) error {
	if err := b.runner.Download(ctx, req.URL, sink.Path(), b.format); err != nil {
		return domain.NewBackendError(b.Name(), "download", err)
	}
	return nil
}

// PageBackend scans the page HTML for a direct playable URL and streams it.
type PageBackend struct {
	http HTTPSource
}

// NewPageBackend creates a PageBackend.
func NewPageBackend(http HTTPSource) *PageBackend {
	return &PageBackend{http: http}
}

func (b *PageBackend) Name() string { return "page-scan" }

func (b *PageBackend) Fetch(ctx context.Context, req domain.MediaRequest, sink Sink) error {
	body, err := b.http.FetchPage(ctx, req.URL)
	if err != nil {
		return domain.NewBackendError(b.Name(), "fetch page", err)
	}

	mediaURL := FindMediaURL(body)
	if mediaURL == "" {
		return domain.NewBackendError(b.Name(), "scan", domain.ErrNoMediaURL)
	}

	if err := stream(ctx, b.http, mediaURL, sink); err != nil {
		return domain.NewBackendError(b.Name(), "stream", err)
	}
	return nil
}

var (
	ogVideoPattern = regexp.MustCompile(`(?i)<meta[^>]+property="og:video(?::secure_url|:url)?"[^>]+content="([^"]+)"`)
	muxedPattern   = regexp.MustCompile(`"url":"(https:[^"]*?googlevideo\.com[^"]*?)"[^{}]*?"mimeType":"video/mp4`)
	streamPattern  = regexp.MustCompile(`"url":"(https:[^"]*?googlevideo\.com[^"]*?)"`)
)

// FindMediaURL returns the first direct playable URL found in a page body.
// A muxed mp4 stream is preferred over the page's og:video tag, which is
// preferred over any other stream URL. Returns "" when nothing matches.
func FindMediaURL(body []byte) string {
	if m := muxedPattern.FindSubmatch(body); m != nil {
		if u := unescapeJSON(string(m[1])); isHTTP(u) {
			return u
		}
	}
	if m := ogVideoPattern.FindSubmatch(body); m != nil {
		if u := html.UnescapeString(string(m[1])); isHTTP(u) {
			return u
		}
	}
	if m := streamPattern.FindSubmatch(body); m != nil {
		if u := unescapeJSON(string(m[1])); isHTTP(u) {
			return u
		}
	}
	return ""
}

func unescapeJSON(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return strings.ReplaceAll(s, `\u0026`, "&")
	}
	return out
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}

func stream(ctx context.Context, src HTTPSource, url string, sink Sink) error {
	body, _, err := src.Download(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(sink, body); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Sources holds the collaborators used to build the default chains. Nil
// fields drop the backends that need them.
type Sources struct {
	HTTP   HTTPSource
	Lookup LookupSource
	Tool   ToolRunner
	Format string
}

// DefaultChains builds the per-platform backend order:
// TikTok tries the lookup API then the extractor tool; YouTube tries the
// extractor tool then a page scan. Generic has no backends.
func DefaultChains(src Sources) map[domain.Platform][]Backend {
	chains := map[domain.Platform][]Backend{}

	var tiktok []Backend
	if src.HTTP != nil && src.Lookup != nil {
		tiktok = append(tiktok, NewLookupBackend(src.HTTP, src.Lookup))
	}
	if src.Tool != nil {
		tiktok = append(tiktok, NewToolBackend(src.Tool, src.Format))
	}
	chains[domain.PlatformTikTok] = tiktok

	var youtube []Backend
	if src.Tool != nil {
		youtube = append(youtube, NewToolBackend(src.Tool, src.Format))
	}
	if src.HTTP != nil {
		youtube = append(youtube, NewPageBackend(src.HTTP))
	}
	chains[domain.PlatformYouTube] = youtube

	return chains
}

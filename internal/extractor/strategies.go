package extractor

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/iconidentify/clipgrab/internal/domain"
	"github.com/iconidentify/clipgrab/pkg/tikwm"
	"github.com/iconidentify/clipgrab/pkg/ytdlp"
)

// MetadataSource returns structured metadata for a URL.
type MetadataSource interface {
	Metadata(ctx context.Context, url string) (*ytdlp.Info, error)
}

// LookupSource resolves a TikTok URL through a lookup API.
type LookupSource interface {
	Lookup(ctx context.Context, url string) (*tikwm.Video, error)
}

// PageSource fetches raw page content.
type PageSource interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// MetadataStrategy reads description, then title, from structured metadata.
type MetadataStrategy struct {
	source MetadataSource
}

// NewMetadataStrategy creates a MetadataStrategy.
func NewMetadataStrategy(source MetadataSource) *MetadataStrategy {
	return &MetadataStrategy{source: source}
}

// Name returns the strategy name.
func (s *MetadataStrategy) Name() string { return "ytdlp-metadata" }

// Extract returns the description, or the title when it is empty.
func (s *MetadataStrategy) Extract(ctx context.Context, req domain.MediaRequest) (domain.ExtractionResult, error) {
	info, err := s.source.Metadata(ctx, req.URL)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	if d := strings.TrimSpace(info.Description); d != "" {
		return domain.ExtractionResult{Text: d}, nil
	}
	if t := strings.TrimSpace(info.Title); t != "" {
		return domain.ExtractionResult{Text: t}, nil
	}
	return domain.ExtractionResult{}, domain.ErrCaptionNotFound
}

// LookupStrategy takes the caption from a lookup API. Without a
// configured source it yields the placeholder text.
type LookupStrategy struct {
	source LookupSource
}

// NewLookupStrategy creates a LookupStrategy. source may be nil.
func NewLookupStrategy(source LookupSource) *LookupStrategy {
	return &LookupStrategy{source: source}
}

// Name returns the strategy name.
func (s *LookupStrategy) Name() string { return "tikwm-lookup" }

// Extract returns the post title reported by the lookup API.
func (s *LookupStrategy) Extract(ctx context.Context, req domain.MediaRequest) (domain.ExtractionResult, error) {
	if s.source == nil {
		return domain.ExtractionResult{Text: TikTokPlaceholder, IsFallback: true}, nil
	}

	v, err := s.source.Lookup(ctx, req.URL)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	if strings.TrimSpace(v.Title) == "" {
		return domain.ExtractionResult{}, domain.ErrCaptionNotFound
	}
	return domain.ExtractionResult{Text: v.Title}, nil
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

var spaceRun = regexp.MustCompile(`\s+`)

// TitleStrategy scrapes the <title> element of the page.
type TitleStrategy struct {
	source PageSource
}

// NewTitleStrategy creates a TitleStrategy.
func NewTitleStrategy(source PageSource) *TitleStrategy {
	return &TitleStrategy{source: source}
}

// Name returns the strategy name.
func (s *TitleStrategy) Name() string { return "html-title" }

// Extract returns the page title.
func (s *TitleStrategy) Extract(ctx context.Context, req domain.MediaRequest) (domain.ExtractionResult, error) {
	body, err := s.source.FetchPage(ctx, req.URL)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	title := ParseTitle(body)
	if title == "" {
		return domain.ExtractionResult{}, domain.ErrCaptionNotFound
	}
	return domain.ExtractionResult{Text: title}, nil
}

// ParseTitle returns the unescaped, whitespace-collapsed <title> text.
func ParseTitle(body []byte) string {
	m := titlePattern.FindSubmatch(body)
	if m == nil {
		return ""
	}
	title := html.UnescapeString(string(m[1]))
	return strings.TrimSpace(spaceRun.ReplaceAllString(title, " "))
}

// DefaultStrategies wires the standard strategy list per platform. TikTok
// tries the lookup API, then structured metadata; with neither configured it
// yields the placeholder. A nil meta or pages source leaves YouTube or
// Generic without strategies.
func DefaultStrategies(meta MetadataSource, lookup LookupSource, pages PageSource) map[domain.Platform][]Strategy {
	strategies := map[domain.Platform][]Strategy{}

	var tiktok []Strategy
	if lookup != nil {
		tiktok = append(tiktok, NewLookupStrategy(lookup))
	}
	if meta != nil {
		tiktok = append(tiktok, NewMetadataStrategy(meta))
		strategies[domain.PlatformYouTube] = []Strategy{NewMetadataStrategy(meta)}
	}
	if len(tiktok) == 0 {
		tiktok = append(tiktok, NewLookupStrategy(nil))
	}
	strategies[domain.PlatformTikTok] = tiktok

	if pages != nil {
		strategies[domain.PlatformGeneric] = []Strategy{NewTitleStrategy(pages)}
	}
	return strategies
}

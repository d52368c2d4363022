// Package extractor produces captions for media URLs. Extraction is
// fail-open: callers always receive non-empty text.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iconidentify/clipgrab/internal/domain"
)

// Fixed texts returned when no real caption is available.
const (
	SentinelCaption   = "❌ Caption tidak ditemukan"
	TikTokPlaceholder = "🎵 Caption TikTok tidak tersedia"
)

// Strategy is one way of obtaining a caption for a platform.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, req domain.MediaRequest) (domain.ExtractionResult, error)
}

// Extractor runs the strategies registered for a request's platform in order.
type Extractor struct {
	strategies map[domain.Platform][]Strategy
	logger     *slog.Logger
}

// New creates an Extractor from per-platform strategy lists.
func New(strategies map[domain.Platform][]Strategy, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		strategies: strategies,
		logger:     logger.With("component", "extractor"),
	}
}

// Extract returns the first non-empty caption any strategy produces, or the
// sentinel caption. It never returns an error.
func (e *Extractor) Extract(ctx context.Context, req domain.MediaRequest) domain.ExtractionResult {
	logger := e.logger.With("platform", req.Platform, "url", req.URL)

	for _, s := range e.strategies[req.Platform] {
		res, err := e.run(ctx, s, req)
		if err != nil {
			logger.Warn("caption strategy failed",
				"error", &domain.ExtractionError{Platform: req.Platform, Strategy: s.Name(), Err: err},
			)
			continue
		}

		res.Text = strings.TrimSpace(res.Text)
		if res.Text == "" {
			logger.Warn("caption strategy returned empty text", "strategy", s.Name())
			continue
		}
		if res.Source == "" {
			res.Source = s.Name()
		}
		return res
	}

	return domain.ExtractionResult{Text: SentinelCaption, IsFallback: true}
}

func (e *Extractor) run(ctx context.Context, s Strategy, req domain.MediaRequest) (res domain.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return s.Extract(ctx, req)
}

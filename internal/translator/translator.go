// Package translator converts captions to the display locale. It is
// fail-open: any backend failure returns the input unchanged.
package translator

import (
	"context"
	"log/slog"
	"strings"
)

// Backend performs the actual translation.
type Backend interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Translator wraps a Backend with the fail-open policy.
type Translator struct {
	backend Backend
	target  string
	logger  *slog.Logger
}

// New creates a Translator. A nil backend disables translation.
func New(backend Backend, target string, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		backend: backend,
		target:  target,
		logger:  logger.With("component", "translator"),
	}
}

// Translate returns text in the target locale, or text unchanged when the
// backend is missing or fails. It never retries.
func (t *Translator) Translate(ctx context.Context, text string) string {
	if t.backend == nil || strings.TrimSpace(text) == "" {
		return text
	}

	translated, err := t.backend.Translate(ctx, text, t.target)
	if err != nil {
		t.logger.Warn("translation failed, using original text",
			"target", t.target,
			"error", err,
		)
		return text
	}
	if strings.TrimSpace(translated) == "" {
		return text
	}
	return translated
}

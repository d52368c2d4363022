package domain

import "strings"

// MediaRequest is a URL paired with its platform classification.
// It is derived from a session's last URL, never stored.
type MediaRequest struct {
	URL      string
	Platform Platform
}

// NewMediaRequest classifies url and returns the resulting request.
func NewMediaRequest(url string) MediaRequest {
	url = strings.TrimSpace(url)
	return MediaRequest{
		URL:      url,
		Platform: Classify(url),
	}
}

// ExtractionResult is the caption produced for a URL.
// Text is never empty; IsFallback marks sentinel or placeholder text.
type ExtractionResult struct {
	Text       string
	IsFallback bool
	Source     string // strategy that produced Text, empty for the sentinel
}

// MediaArtifact is a retrieved media file scoped to one request.
type MediaArtifact struct {
	Path string
	Size int64
}

// Truncate returns at most max runes of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

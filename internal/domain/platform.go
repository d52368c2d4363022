package domain

import "strings"

// Platform is the retrieval strategy family a URL belongs to.
type Platform string

const (
	PlatformTikTok  Platform = "tiktok"
	PlatformYouTube Platform = "youtube"
	PlatformGeneric Platform = "generic"
)

// String returns the string representation of the Platform.
func (p Platform) String() string {
	return string(p)
}

// Domain markers checked by Classify. TikTok markers are tested first.
var (
	tiktokMarkers  = []string{"tiktok.com"}
	youtubeMarkers = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}
)

// Classify maps a URL to a Platform. It never fails: anything that does not
// carry a known domain marker is PlatformGeneric.
func Classify(rawURL string) Platform {
	u := strings.ToLower(strings.TrimSpace(rawURL))

	if containsAny(u, tiktokMarkers) {
		return PlatformTikTok
	}
	if containsAny(u, youtubeMarkers) {
		return PlatformYouTube
	}
	return PlatformGeneric
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// IsURL reports whether text starts with an http or https scheme.
func IsURL(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}

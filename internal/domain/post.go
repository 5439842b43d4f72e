package domain

import (
	"net/url"
	"strings"
	"time"
)

// PostID is the platform shortcode that uniquely identifies a post. It is
// only ever produced by ExtractShortcode, so a non-empty PostID is always
// the result of validated URL parsing.
type PostID string

func (id PostID) String() string { return string(id) }

// CanonicalURL returns the canonical post URL for a shortcode.
func (id PostID) CanonicalURL() string {
	return "https://www.instagram.com/p/" + string(id) + "/"
}

// MediaType identifies the kind of a media asset.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
)

// MediaAsset is one media item extracted from a post page. Assets are
// deduplicated by URL; ordering is extraction order.
type MediaAsset struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// PipelineResult is the terminal payload of one pipeline run. It is the
// only value ever written to the cache or handed to the notifier.
type PipelineResult struct {
	PostID      PostID         `json:"postId,omitempty"`
	MediaAssets []MediaAsset   `json:"mediaAssets,omitempty"`
	PrimaryURL  string         `json:"primaryUrl,omitempty"`
	Analysis    string         `json:"analysis,omitempty"`
	Structured  map[string]any `json:"structured,omitempty"`
	Cached      bool           `json:"cached"`
	CompletedAt time.Time      `json:"completedAt"`
}

// PrimaryAssetURL returns the URL of the first video asset, or the first
// asset of any type when no video is present.
func PrimaryAssetURL(assets []MediaAsset) string {
	for _, a := range assets {
		if a.Type == MediaTypeVideo {
			return a.URL
		}
	}
	if len(assets) > 0 {
		return assets[0].URL
	}
	return ""
}

// Post path segments that carry a shortcode in the following segment.
var shortcodeSegments = map[string]bool{
	"p":     true,
	"reel":  true,
	"reels": true,
	"tv":    true,
}

// ExtractShortcode parses a public post URL and returns its shortcode.
// Malformed or non-post URLs never produce an identifier.
func ExtractShortcode(rawURL string) (PostID, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrInvalidInput
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidInput
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "instagram.com" {
		return "", ErrInvalidInput
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if shortcodeSegments[seg] && i+1 < len(segments) && isShortcode(segments[i+1]) {
			return PostID(segments[i+1]), nil
		}
	}
	return "", ErrInvalidInput
}

func isShortcode(s string) bool {
	if len(s) < 5 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

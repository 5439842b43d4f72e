// Package extractor turns raw post page markup into media assets. The page
// embeds its data as JSON inside script tags; extraction is a tree search
// over those decoded blobs rather than HTML scraping.
package extractor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/reelscope/reelscope/internal/domain"
)

// Extractor produces the media assets of a post from its page markup.
type Extractor interface {
	Extract(markup string, id domain.PostID) ([]domain.MediaAsset, error)
}

// Instagram extracts media from Instagram post pages.
type Instagram struct {
	logger *slog.Logger
}

func NewInstagram(logger *slog.Logger) *Instagram {
	return &Instagram{logger: logger}
}

// Extract parses markup and returns the post's media assets in extraction
// order, deduplicated by URL. When no media is found it distinguishes an
// unavailable post, a login wall and a genuinely empty post.
func (x *Instagram) Extract(markup string, id domain.PostID) ([]domain.MediaAsset, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	assets := x.collectAssets(doc)
	if len(assets) > 0 {
		x.logger.Debug("media extracted", "post_id", id, "assets", len(assets))
		return assets, nil
	}

	if isUnavailable(doc) {
		return nil, domain.ErrPostUnavailable
	}
	if isLoginWall(doc) {
		return nil, domain.ErrUpstreamBlocked
	}
	return nil, domain.ErrNoMedia
}

// collectAssets decodes every JSON script blob and searches each one for
// media nodes. Nodes holding a carousel are descended into, never matched
// themselves, so each carousel item yields its own asset.
func (x *Instagram) collectAssets(doc *goquery.Document) []domain.MediaAsset {
	var assets []domain.MediaAsset
	seen := make(map[string]bool)

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) == 0 || (text[0] != '{' && text[0] != '[') {
			return
		}
		var root any
		if err := json.Unmarshal([]byte(text), &root); err != nil {
			return
		}

		for _, node := range findAll(root, isMediaNode) {
			for _, a := range assetsFromNode(node) {
				if seen[a.URL] {
					continue
				}
				seen[a.URL] = true
				assets = append(assets, a)
			}
		}
	})

	return assets
}

func isMediaNode(node map[string]any) bool {
	if _, ok := node["carousel_media"]; ok {
		return false
	}
	_, hasVideo := node["video_versions"]
	_, hasImage := node["image_versions2"]
	return hasVideo || hasImage
}

// assetsFromNode reads a single media node. A node carrying both video
// renditions and an image set is a video with a poster frame, so the video
// wins; the image set is only used when no usable video URL exists.
func assetsFromNode(node map[string]any) []domain.MediaAsset {
	if u := firstVideoURL(node); u != "" {
		return []domain.MediaAsset{{Type: domain.MediaTypeVideo, URL: u}}
	}
	if u := firstImageURL(node); u != "" {
		return []domain.MediaAsset{{Type: domain.MediaTypeImage, URL: u}}
	}
	return nil
}

func firstVideoURL(node map[string]any) string {
	versions, ok := node["video_versions"].([]any)
	if !ok {
		return ""
	}
	for _, v := range versions {
		if u := urlField(v); usableURL(u) {
			return u
		}
	}
	return ""
}

func firstImageURL(node map[string]any) string {
	set, ok := node["image_versions2"].(map[string]any)
	if !ok {
		return ""
	}
	candidates, ok := set["candidates"].([]any)
	if !ok {
		return ""
	}
	for _, c := range candidates {
		if u := urlField(c); usableURL(u) {
			return u
		}
	}
	return ""
}

func urlField(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	u, _ := m["url"].(string)
	return u
}

// usableURL rejects empty and blob-scheme URLs. Blob URLs are ephemeral
// references into the rendering session and cannot be fetched afterwards.
func usableURL(u string) bool {
	return u != "" && !strings.HasPrefix(u, "blob:")
}

// The unavailable page renders a bare apology span directly under main.
func isUnavailable(doc *goquery.Document) bool {
	marker := doc.Find("main > div > div > span").First()
	return marker.Length() > 0 && strings.TrimSpace(marker.Text()) != ""
}

// A redirect to the login wall means the scraper was flagged, not that the
// post is gone.
func isLoginWall(doc *goquery.Document) bool {
	return doc.Find(`form#loginForm, input[name="username"]`).Length() > 0
}

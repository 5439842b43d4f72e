// Package tikwm is a client for the tikwm.com TikTok downloader API, used
// for posts that live behind TikTok's player instead of a scrapeable page.
package tikwm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelscope/reelscope/internal/domain"
)

// Client calls the tikwm REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config carries the downloader API settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// PostInfo is the metadata tikwm returns for a single post.
type PostInfo struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Author   Author   `json:"author"`
	Duration int      `json:"duration"`
	PlayURL  string   `json:"play"`
	HDURL    string   `json:"hdplay"`
	MusicURL string   `json:"music"`
	Images   []string `json:"images"`
}

// Author identifies the posting account.
type Author struct {
	UniqueID string `json:"unique_id"`
	Nickname string `json:"nickname"`
}

type apiResponse struct {
	Code int      `json:"code"`
	Msg  string   `json:"msg"`
	Data PostInfo `json:"data"`
}

// Info fetches post metadata. version "hd" requests high-definition play
// URLs; any other value uses the standard rendition.
func (c *Client) Info(ctx context.Context, postURL, version string) (*PostInfo, error) {
	q := url.Values{}
	q.Set("url", postURL)
	if version == "hd" {
		q.Set("hd", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if api.Code != 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostUnavailable, api.Msg)
	}

	return &api.Data, nil
}

// DownloadURLs returns the post's media as assets, preferring the HD
// rendition for video. Photo-mode posts yield one image asset per slide.
func DownloadURLs(info *PostInfo) []domain.MediaAsset {
	if len(info.Images) > 0 {
		assets := make([]domain.MediaAsset, 0, len(info.Images))
		for _, u := range info.Images {
			if u == "" {
				continue
			}
			assets = append(assets, domain.MediaAsset{Type: domain.MediaTypeImage, URL: u})
		}
		return assets
	}

	u := info.HDURL
	if u == "" {
		u = info.PlayURL
	}
	if u == "" {
		return nil
	}
	return []domain.MediaAsset{{Type: domain.MediaTypeVideo, URL: u}}
}

// Summary renders a short human-readable line for download responses.
func Summary(info *PostInfo) string {
	author := info.Author.Nickname
	if author == "" {
		author = info.Author.UniqueID
	}
	if info.Duration > 0 {
		return fmt.Sprintf("%s by %s (%ds)", info.Title, author, info.Duration)
	}
	return fmt.Sprintf("%s by %s", info.Title, author)
}

// Package contentapi is the client for the third-party content callback.
// Deliveries are fire-and-forget: errors are returned for logging only and
// never influence the pipeline outcome.
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client delivers analysis outcomes to the content API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config carries the callback endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type analysisPayload struct {
	ContentID string `json:"contentId"`
	Analysis  string `json:"analysis,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Send delivers a successful analysis for contentID.
func (c *Client) Send(ctx context.Context, contentID, text string) error {
	return c.post(ctx, analysisPayload{ContentID: contentID, Analysis: text})
}

// SendFailure reports a failed analysis for contentID.
func (c *Client) SendFailure(ctx context.Context, contentID, message string) error {
	return c.post(ctx, analysisPayload{ContentID: contentID, Error: message})
}

// post delivers the payload. Any HTTP status counts as delivered; the
// remote side owns interpretation of its own responses.
func (c *Client) post(ctx context.Context, payload analysisPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/contents/%s/analysis", c.baseURL, payload.ContentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return nil
}

// Package vision is a client for an OpenAI-compatible chat API with image
// input, used to describe downloaded media.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config carries the connection settings for the vision API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// HTTPClient implements Client against a chat/completions endpoint.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a vision API client.
func NewClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart for vision
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You are a social media content analyst. Describe the provided media thoroughly: what is shown, any visible text, people, places, products and the overall subject. After the prose description, append a fenced json block with fields "summary" (string), "tags" (array of strings) and "content_type" (string).`

// Media parts sent per request; extras are dropped from the tail.
const maxMediaParts = 4

// AnalyzeVideo describes a video post. The videos themselves are uploaded
// as media parts; posterPaths may add poster frames when available.
func (c *HTTPClient) AnalyzeVideo(ctx context.Context, videoPaths, posterPaths []string) (string, error) {
	prompt := "This is a video post. Analyze the attached video(s) and describe their content."
	return c.analyze(ctx, prompt, append(append([]string{}, videoPaths...), posterPaths...))
}

// AnalyzeImages describes one or more images.
func (c *HTTPClient) AnalyzeImages(ctx context.Context, imagePaths []string) (string, error) {
	prompt := fmt.Sprintf("Analyze these %d image(s) from a social media post and describe their content.", len(imagePaths))
	return c.analyze(ctx, prompt, imagePaths)
}

// AnalyzeMixed describes a post that carries both videos and images.
func (c *HTTPClient) AnalyzeMixed(ctx context.Context, videoPaths, imagePaths []string) (string, error) {
	prompt := fmt.Sprintf("This post contains %d video(s) and %d image(s). Describe the whole post.", len(videoPaths), len(imagePaths))
	return c.analyze(ctx, prompt, append(append([]string{}, videoPaths...), imagePaths...))
}

func (c *HTTPClient) analyze(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	parts := []contentPart{{Type: "text", Text: prompt}}

	paths := imagePaths
	if len(paths) > maxMediaParts {
		paths = paths[:maxMediaParts]
	}
	for _, p := range paths {
		data, mimeType, err := encodeMedia(p)
		if err != nil {
			// Unreadable files are skipped; the remaining ones still carry
			// enough signal for a description.
			continue
		}
		parts = append(parts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, data),
				Detail: "high",
			},
		})
	}
	if len(parts) == 1 {
		return "", fmt.Errorf("no readable media to analyze")
	}

	chatReq := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from vision API")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// ParseStructured extracts the fenced json block appended by the model.
// Returns nil when no parseable block is present; the raw text remains the
// source of truth either way.
func ParseStructured(text string) map[string]any {
	start := strings.Index(text, "```json")
	if start < 0 {
		return nil
	}
	rest := text[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return nil
	}

	var structured map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &structured); err != nil {
		return nil
	}
	return structured
}

func encodeMedia(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read media: %w", err)
	}

	var mimeType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mimeType = "image/png"
	case ".gif":
		mimeType = "image/gif"
	case ".webp":
		mimeType = "image/webp"
	case ".mp4":
		mimeType = "video/mp4"
	case ".mov":
		mimeType = "video/quicktime"
	case ".webm":
		mimeType = "video/webm"
	default:
		mimeType = "image/jpeg"
	}

	return base64.StdEncoding.EncodeToString(data), mimeType, nil
}

package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake media bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestServer(t *testing.T, reply string, inspect func(chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if inspect != nil {
			inspect(req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		})
	}))
}

func newTestClient(baseURL string) *HTTPClient {
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-vision",
		Timeout: 5 * time.Second,
	})
}

func TestAnalyzeImages(t *testing.T) {
	img := writeTempMedia(t, "photo.jpg")

	srv := newTestServer(t, "A photo of a dog.", func(req chatRequest) {
		if req.Model != "test-vision" {
			t.Errorf("model = %q", req.Model)
		}
		parts, ok := req.Messages[1].Content.([]any)
		if !ok || len(parts) != 2 {
			t.Fatalf("user content = %v, want text + 1 image part", req.Messages[1].Content)
		}
		part := parts[1].(map[string]any)
		u := part["image_url"].(map[string]any)["url"].(string)
		if !strings.HasPrefix(u, "data:image/jpeg;base64,") {
			t.Errorf("image part URL = %.40q, want jpeg data URL", u)
		}
	})
	defer srv.Close()

	text, err := newTestClient(srv.URL).AnalyzeImages(context.Background(), []string{img})
	if err != nil {
		t.Fatalf("AnalyzeImages() error = %v", err)
	}
	if text != "A photo of a dog." {
		t.Errorf("text = %q", text)
	}
}

func TestAnalyzeVideo_UploadsVideoParts(t *testing.T) {
	vids := []string{
		writeTempMedia(t, "clip1.mp4"),
		writeTempMedia(t, "clip2.mp4"),
	}

	srv := newTestServer(t, "Two short clips.", func(req chatRequest) {
		parts := req.Messages[1].Content.([]any)
		if len(parts) != 3 {
			t.Fatalf("user content has %d parts, want text + 2 video parts", len(parts))
		}
		for _, p := range parts[1:] {
			part := p.(map[string]any)
			u := part["image_url"].(map[string]any)["url"].(string)
			if !strings.HasPrefix(u, "data:video/mp4;base64,") {
				t.Errorf("video part URL = %.40q, want mp4 data URL", u)
			}
		}
	})
	defer srv.Close()

	if _, err := newTestClient(srv.URL).AnalyzeVideo(context.Background(), vids, nil); err != nil {
		t.Fatalf("AnalyzeVideo() error = %v", err)
	}
}

func TestAnalyze_NoReadableMedia(t *testing.T) {
	srv := newTestServer(t, "unused", nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL).AnalyzeImages(context.Background(), []string{"/nonexistent/a.jpg"})
	if err == nil {
		t.Fatal("expected error when no media is readable")
	}
}

func TestAnalyze_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	img := writeTempMedia(t, "photo.jpg")
	_, err := newTestClient(srv.URL).AnalyzeImages(context.Background(), []string{img})
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Errorf("error = %v, want status 429 in message", err)
	}
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{
			name: "fenced block",
			text: "A dog at the beach.\n```json\n{\"summary\":\"dog\",\"tags\":[\"dog\",\"beach\"]}\n```",
			want: map[string]any{"summary": "dog", "tags": []any{"dog", "beach"}},
		},
		{
			name: "no block",
			text: "plain prose only",
			want: nil,
		},
		{
			name: "malformed json",
			text: "text\n```json\n{not json}\n```",
			want: nil,
		},
		{
			name: "unterminated fence",
			text: "text\n```json\n{\"a\":1}",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStructured(tt.text)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseStructured() = %v, want %v", got, tt.want)
			}
			if got != nil && got["summary"] != tt.want["summary"] {
				t.Errorf("summary = %v, want %v", got["summary"], tt.want["summary"])
			}
		})
	}
}

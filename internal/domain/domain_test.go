package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestExtractShortcode(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    PostID
		wantErr bool
	}{
		{"post url", "https://www.instagram.com/p/Cxyz123/", "Cxyz123", false},
		{"reel url", "https://instagram.com/reel/DQabcd9/", "DQabcd9", false},
		{"reels url", "https://www.instagram.com/reels/Ab_12-Xy/", "Ab_12-Xy", false},
		{"tv url", "https://www.instagram.com/tv/CtvCode1/", "CtvCode1", false},
		{"user-scoped post", "https://www.instagram.com/someuser/p/Cxyz123/", "Cxyz123", false},
		{"query params kept out", "https://www.instagram.com/p/Cxyz123/?igsh=abc", "Cxyz123", false},
		{"wrong host", "https://example.com/p/Cxyz123/", "", true},
		{"profile url", "https://www.instagram.com/someuser/", "", true},
		{"missing shortcode", "https://www.instagram.com/p/", "", true},
		{"shortcode too short", "https://www.instagram.com/p/ab/", "", true},
		{"bad scheme", "ftp://www.instagram.com/p/Cxyz123/", "", true},
		{"not a url", "::::", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractShortcode(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("err = %v, want ErrInvalidInput", err)
				}
				if got != "" {
					t.Errorf("got = %q, want empty on error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	id := PostID("test123")
	want := "https://www.instagram.com/p/test123/"
	if got := id.CanonicalURL(); got != want {
		t.Errorf("CanonicalURL() = %q, want %q", got, want)
	}
}

func TestPrimaryAssetURL(t *testing.T) {
	assets := []MediaAsset{
		{Type: MediaTypeImage, URL: "https://cdn.example/a.jpg"},
		{Type: MediaTypeVideo, URL: "https://cdn.example/b.mp4"},
	}
	if got := PrimaryAssetURL(assets); got != "https://cdn.example/b.mp4" {
		t.Errorf("PrimaryAssetURL() = %q, want video first", got)
	}

	imagesOnly := assets[:1]
	if got := PrimaryAssetURL(imagesOnly); got != "https://cdn.example/a.jpg" {
		t.Errorf("PrimaryAssetURL() = %q, want first asset", got)
	}

	if got := PrimaryAssetURL(nil); got != "" {
		t.Errorf("PrimaryAssetURL(nil) = %q, want empty", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrPostUnavailable, http.StatusNotFound},
		{ErrNoMedia, http.StatusNotFound},
		{ErrUpstreamBlocked, http.StatusInternalServerError},
		{ErrNavigationTimeout, http.StatusInternalServerError},
		{NewPipelineError("test123", "extract", ErrNoMedia), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPipelineError(t *testing.T) {
	inner := fmt.Errorf("navigate: %w", ErrNavigationTimeout)
	err := NewPipelineError("test123", "fetch", inner)

	if !errors.Is(err, ErrNavigationTimeout) {
		t.Error("PipelineError should unwrap to the inner sentinel")
	}
	want := "fetch [test123]: navigate: page navigation timed out"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noID := NewPipelineError("", "fetch", inner)
	if noID.Error() != "fetch: navigate: page navigation timed out" {
		t.Errorf("Error() without post = %q", noID.Error())
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(NewPipelineError("x", "analyze", ErrAnalysisFailed)); got != ErrAnalysisFailed.Error() {
		t.Errorf("UserMessage = %q, want sentinel message", got)
	}
	if got := UserMessage(errors.New("sql: connection refused")); got != "internal error" {
		t.Errorf("UserMessage = %q, want generic message for internal errors", got)
	}
}

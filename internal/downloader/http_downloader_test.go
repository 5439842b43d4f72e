package downloader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reelscope/reelscope/internal/config"
	"github.com/reelscope/reelscope/internal/domain"
)

func testConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Timeout:       5 * time.Second,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
		UserAgent:     "test-agent",
	}
}

func newTestDownloader() *HTTPDownloader {
	return NewHTTPDownloader(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want test-agent", ua)
		}
		w.Write([]byte("video bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "asset.mp4")
	asset := domain.MediaAsset{Type: domain.MediaTypeVideo, URL: srv.URL}

	path, err := newTestDownloader().Fetch(context.Background(), asset, dest)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if path != dest {
		t.Errorf("path = %q, want %q", path, dest)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "video bytes" {
		t.Errorf("file contents = %q", data)
	}
}

func TestFetch_ExpiredURLNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "asset.mp4")
	asset := domain.MediaAsset{Type: domain.MediaTypeVideo, URL: srv.URL}

	_, err := newTestDownloader().Fetch(context.Background(), asset, dest)
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (403 is terminal)", got)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no file should remain after a failed fetch")
	}
}

func TestFetch_RetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "asset.jpg")
	asset := domain.MediaAsset{Type: domain.MediaTypeImage, URL: srv.URL}

	if _, err := newTestDownloader().Fetch(context.Background(), asset, dest); err != nil {
		t.Fatalf("Fetch() error = %v, want success after retries", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
}

func TestFetch_RetriesServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "asset.jpg")
	asset := domain.MediaAsset{Type: domain.MediaTypeImage, URL: srv.URL}

	_, err := newTestDownloader().Fetch(context.Background(), asset, dest)
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed after retries", err)
	}
	if got := hits.Load(); got != int32(maxAttempts) {
		t.Errorf("server hits = %d, want %d", got, maxAttempts)
	}
}

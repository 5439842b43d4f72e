// Package downloader fetches extracted media assets over HTTP into the
// pipeline's temporary storage.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/reelscope/reelscope/internal/config"
	"github.com/reelscope/reelscope/internal/domain"
)

const maxAttempts = 3

// HTTPDownloader implements asset fetching with retry and backoff. CDN URLs
// extracted from a page are signed and short-lived, so an authorization
// failure means the URL expired rather than a transient fault.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
	cfg       config.DownloadConfig
	logger    *slog.Logger
}

// NewHTTPDownloader creates an HTTP-based media downloader.
func NewHTTPDownloader(cfg config.DownloadConfig, logger *slog.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    logger,
	}
}

// Fetch downloads asset to destPath and returns the local path. Transient
// failures are retried with capped exponential backoff; expired URLs are
// terminal.
func (d *HTTPDownloader) Fetch(ctx context.Context, asset domain.MediaAsset, destPath string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := d.fetchOnce(ctx, asset, destPath)
		if err == nil {
			return destPath, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}

		delay := d.cfg.RetryDelay * (1 << attempt)
		if delay > d.cfg.MaxRetryDelay {
			delay = d.cfg.MaxRetryDelay
		}
		d.logger.Warn("download attempt failed, retrying",
			"url", asset.URL, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if errors.Is(lastErr, domain.ErrDownloadFailed) || errors.Is(lastErr, domain.ErrRateLimited) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, lastErr)
}

func (d *HTTPDownloader) fetchOnce(ctx context.Context, asset domain.MediaAsset, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	// Mimic a browser request; bare clients get served error pages.
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Referer", "https://www.instagram.com/")
	if asset.Type == domain.MediaTypeVideo {
		req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")
	} else {
		req.Header.Set("Accept", "image/avif,image/webp,image/*;q=0.9,*/*;q=0.8")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: media URL expired (status %d)", domain.ErrDownloadFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("write file: %w", err)
	}

	d.logger.Debug("asset downloaded",
		"url", asset.URL, "path", destPath, "bytes", written)
	return nil
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	if errors.Is(err, domain.ErrDownloadFailed) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

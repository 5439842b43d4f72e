// Package browser owns the process-wide headless browser session and hands
// out short-lived page handles to pipeline runs. The browser is launched
// once at startup; a crash is fatal and handled by a process restart, not
// in-band recovery.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/reelscope/reelscope/internal/config"
	"github.com/reelscope/reelscope/internal/domain"
)

// Resource types aborted by the interception filter. The embedded JSON the
// extractor needs lives in the document markup, so page assets are dead
// weight here.
var blockedResourceTypes = map[string]bool{
	"stylesheet": true,
	"font":       true,
	"image":      true,
	"media":      true,
}

// Analytics and tracking hosts aborted regardless of resource type.
var blockedHostFragments = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"facebook.net",
	"connect.facebook.com",
	"branch.io",
}

// Pool owns one long-lived browser and issues isolated page handles.
type Pool struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.BrowserConfig
	logger  *slog.Logger
}

// NewPool starts the playwright driver and launches the shared browser.
func NewPool(cfg config.BrowserConfig, logger *slog.Logger) (*Pool, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright driver: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecutablePath)
	}

	b, err := pw.Chromium.Launch(opts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	logger.Info("browser session started", "headless", cfg.Headless)

	return &Pool{
		pw:      pw,
		browser: b,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Running reports whether the shared browser session is alive.
func (p *Pool) Running() bool {
	return p.browser != nil && p.browser.IsConnected()
}

// NewPage issues an isolated page handle with the interception filter
// applied. Callers must Close the handle on every exit path.
func (p *Pool) NewPage(ctx context.Context) (*PageHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.Running() {
		return nil, domain.ErrResourceUnavailable
	}

	pg, err := p.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(p.cfg.UserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
	}

	handle := &PageHandle{
		page:    pg,
		timeout: p.cfg.NavigationTimeout,
		logger:  p.logger,
	}

	if err := pg.Route("**/*", interceptionFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("%w: enable interception: %v", domain.ErrResourceUnavailable, err)
	}

	return handle, nil
}

// Close shuts down the browser and the driver.
func (p *Pool) Close() error {
	var errs []error
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if p.pw != nil {
		if err := p.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop driver: %w", err))
		}
	}
	return errors.Join(errs...)
}

func interceptionFilter(route playwright.Route) {
	req := route.Request()
	if blockedResourceTypes[req.ResourceType()] || isBlockedHost(req.URL()) {
		route.Abort()
		return
	}
	route.Continue()
}

func isBlockedHost(url string) bool {
	for _, fragment := range blockedHostFragments {
		if strings.Contains(url, fragment) {
			return true
		}
	}
	return false
}

// PageHandle is a short-lived, per-request child of the browser session.
type PageHandle struct {
	page      playwright.Page
	timeout   time.Duration
	logger    *slog.Logger
	closeOnce sync.Once
}

// Goto navigates to url, waits for the network-idle condition and returns
// the page markup.
func (h *PageHandle) Goto(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	_, err := h.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(h.timeout.Milliseconds())),
	})
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrNavigationTimeout, url)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrNavigationError, err)
	}

	markup, err := h.page.Content()
	if err != nil {
		return "", fmt.Errorf("%w: read content: %v", domain.ErrNavigationError, err)
	}
	return markup, nil
}

// Close destroys the page. Safe to call on every exit path; only the first
// call reaches the browser.
func (h *PageHandle) Close() {
	h.closeOnce.Do(func() {
		if err := h.page.Close(); err != nil {
			h.logger.Warn("page close failed", "error", err)
		}
	})
}

func isTimeout(err error) bool {
	var pwErr *playwright.Error
	if errors.As(err, &pwErr) && pwErr.Name == "TimeoutError" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

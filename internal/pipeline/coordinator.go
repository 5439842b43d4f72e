// Package pipeline implements the scrape/analyze coordinator: the state
// machine that takes a post URL through fetch, extract, download, analyze,
// notify, cache and cleanup with guaranteed resource release.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelscope/reelscope/internal/cache"
	"github.com/reelscope/reelscope/internal/domain"
	"github.com/reelscope/reelscope/internal/inflight"
	"github.com/reelscope/reelscope/internal/notify"
	"github.com/reelscope/reelscope/pkg/tikwm"
	"github.com/reelscope/reelscope/pkg/vision"
)

// Page is a live browser page held by one pipeline run.
type Page interface {
	Goto(ctx context.Context, url string) (string, error)
	Close()
}

// SessionPool issues pages from the shared browser session.
type SessionPool interface {
	NewPage(ctx context.Context) (Page, error)
	Running() bool
}

// Extractor turns page markup into media assets.
type Extractor interface {
	Extract(markup string, id domain.PostID) ([]domain.MediaAsset, error)
}

// Downloader fetches one asset into local temp storage.
type Downloader interface {
	Fetch(ctx context.Context, asset domain.MediaAsset, destPath string) (string, error)
}

// Analyzer describes downloaded media.
type Analyzer interface {
	AnalyzeVideo(ctx context.Context, videoPaths, posterPaths []string) (string, error)
	AnalyzeImages(ctx context.Context, imagePaths []string) (string, error)
	AnalyzeMixed(ctx context.Context, videoPaths, imagePaths []string) (string, error)
}

// Notifier delivers outcomes to the content API.
type Notifier interface {
	Send(ctx context.Context, contentID, text string) error
	SendFailure(ctx context.Context, contentID, message string) error
}

// Scheduler runs fire-and-forget deliveries off the request path.
type Scheduler interface {
	Dispatch(task notify.Task)
}

// TikTokSource resolves TikTok post metadata without the browser.
type TikTokSource interface {
	Info(ctx context.Context, url, version string) (*tikwm.PostInfo, error)
}

// Deps are the coordinator's collaborators, wired once at startup.
type Deps struct {
	Cache       cache.Store
	Tracker     *inflight.Tracker
	Sessions    SessionPool
	Extractor   Extractor
	Downloader  Downloader
	Analyzer    Analyzer
	Notifier    Notifier
	Scheduler   Scheduler
	TikTok      TikTokSource
	TempPath    string
	AnalysisTTL time.Duration
	Logger      *slog.Logger
}

// Coordinator sequences pipeline runs. Concurrent requests for the same key
// collapse into one run; completed analyses are cached with a TTL.
type Coordinator struct {
	deps Deps
}

func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{deps: deps}
}

// Lookup resolves a post URL to its media assets. No media is downloaded
// and no notification is sent; successful results are cached without expiry
// since a post's media set does not change.
func (c *Coordinator) Lookup(ctx context.Context, rawURL string) (domain.PipelineResult, error) {
	id, err := domain.ExtractShortcode(rawURL)
	if err != nil {
		return domain.PipelineResult{}, err
	}
	key := id.String()

	if res, ok := c.deps.Cache.Get(key); ok {
		res.Cached = true
		return res, nil
	}

	flight, leader := c.deps.Tracker.Begin(key)
	if !leader {
		return flight.Wait(ctx)
	}

	// The run outlives the request: a disconnecting client must not abort
	// work that waiters and the cache depend on.
	runCtx := context.WithoutCancel(ctx)

	var res domain.PipelineResult
	var runErr error
	defer func() { c.deps.Tracker.Finish(key, res, runErr) }()

	assets, runErr := c.fetchAssets(runCtx, id)
	if runErr != nil {
		return domain.PipelineResult{}, runErr
	}

	res = domain.PipelineResult{
		PostID:      id,
		MediaAssets: assets,
		PrimaryURL:  domain.PrimaryAssetURL(assets),
		CompletedAt: time.Now(),
	}
	c.deps.Cache.Set(key, res, cache.NeverExpires)
	return res, nil
}

// Analyze runs the full pipeline for a post and schedules a notification
// for contentID. A cache hit still notifies: the content API record for
// this request must be completed regardless of who did the work.
func (c *Coordinator) Analyze(ctx context.Context, rawURL, contentID string) (domain.PipelineResult, error) {
	id, err := domain.ExtractShortcode(rawURL)
	if err != nil {
		return domain.PipelineResult{}, err
	}
	key := "analysis_" + id.String()

	if res, ok := c.deps.Cache.Get(key); ok {
		res.Cached = true
		c.scheduleSend(contentID, res.Analysis)
		return res, nil
	}

	flight, leader := c.deps.Tracker.Begin(key)
	if !leader {
		res, err := flight.Wait(ctx)
		if err == nil {
			c.scheduleSend(contentID, res.Analysis)
		} else {
			c.scheduleSendFailure(contentID, err)
		}
		return res, err
	}

	runCtx := context.WithoutCancel(ctx)

	var res domain.PipelineResult
	var runErr error
	defer func() { c.deps.Tracker.Finish(key, res, runErr) }()

	res, runErr = c.runAnalysis(runCtx, id)
	if runErr != nil {
		c.scheduleSendFailure(contentID, runErr)
		return domain.PipelineResult{}, runErr
	}

	c.scheduleSend(contentID, res.Analysis)
	c.deps.Cache.Set(key, res, c.deps.AnalysisTTL)
	return res, nil
}

// AnalyzeTikTok runs the analysis pipeline for a TikTok URL. Media URLs
// come from the downloader API; the browser session is not involved.
func (c *Coordinator) AnalyzeTikTok(ctx context.Context, rawURL, contentID, version string) (domain.PipelineResult, error) {
	if err := validateTikTokURL(rawURL); err != nil {
		return domain.PipelineResult{}, err
	}
	key := "tiktok_analysis_" + rawURL

	if res, ok := c.deps.Cache.Get(key); ok {
		res.Cached = true
		c.scheduleSend(contentID, res.Analysis)
		return res, nil
	}

	flight, leader := c.deps.Tracker.Begin(key)
	if !leader {
		res, err := flight.Wait(ctx)
		if err == nil {
			c.scheduleSend(contentID, res.Analysis)
		} else {
			c.scheduleSendFailure(contentID, err)
		}
		return res, err
	}

	runCtx := context.WithoutCancel(ctx)

	var res domain.PipelineResult
	var runErr error
	defer func() { c.deps.Tracker.Finish(key, res, runErr) }()

	res, runErr = c.runTikTokAnalysis(runCtx, rawURL, version)
	if runErr != nil {
		c.scheduleSendFailure(contentID, runErr)
		return domain.PipelineResult{}, runErr
	}

	c.scheduleSend(contentID, res.Analysis)
	c.deps.Cache.Set(key, res, c.deps.AnalysisTTL)
	return res, nil
}

// TikTokInfo fetches post metadata only.
func (c *Coordinator) TikTokInfo(ctx context.Context, rawURL, version string) (*tikwm.PostInfo, error) {
	if err := validateTikTokURL(rawURL); err != nil {
		return nil, err
	}
	return c.deps.TikTok.Info(ctx, rawURL, version)
}

// InflightCount reports the number of keys currently being processed.
func (c *Coordinator) InflightCount() int {
	return c.deps.Tracker.Len()
}

// CacheLen reports the number of cached results.
func (c *Coordinator) CacheLen() int {
	return c.deps.Cache.Len()
}

// fetchAssets acquires a page, navigates to the post and extracts its
// media. The page is released on every path.
func (c *Coordinator) fetchAssets(ctx context.Context, id domain.PostID) ([]domain.MediaAsset, error) {
	page, err := c.deps.Sessions.NewPage(ctx)
	if err != nil {
		return nil, domain.NewPipelineError(id, "fetch", err)
	}
	defer page.Close()

	markup, err := page.Goto(ctx, id.CanonicalURL())
	if err != nil {
		return nil, domain.NewPipelineError(id, "fetch", err)
	}

	assets, err := c.deps.Extractor.Extract(markup, id)
	if err != nil {
		return nil, domain.NewPipelineError(id, "extract", err)
	}
	return assets, nil
}

func (c *Coordinator) runAnalysis(ctx context.Context, id domain.PostID) (domain.PipelineResult, error) {
	assets, err := c.fetchAssets(ctx, id)
	if err != nil {
		return domain.PipelineResult{}, err
	}

	analysis, err := c.analyzeAssets(ctx, id, assets)
	if err != nil {
		return domain.PipelineResult{}, err
	}

	return domain.PipelineResult{
		PostID:      id,
		MediaAssets: assets,
		PrimaryURL:  domain.PrimaryAssetURL(assets),
		Analysis:    analysis,
		Structured:  vision.ParseStructured(analysis),
		CompletedAt: time.Now(),
	}, nil
}

func (c *Coordinator) runTikTokAnalysis(ctx context.Context, rawURL, version string) (domain.PipelineResult, error) {
	info, err := c.deps.TikTok.Info(ctx, rawURL, version)
	if err != nil {
		return domain.PipelineResult{}, domain.NewPipelineError("", "fetch", err)
	}

	assets := tikwm.DownloadURLs(info)
	if len(assets) == 0 {
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PostID(info.ID), "extract", domain.ErrNoMedia)
	}

	analysis, err := c.analyzeAssets(ctx, domain.PostID(info.ID), assets)
	if err != nil {
		return domain.PipelineResult{}, err
	}

	return domain.PipelineResult{
		PostID:      domain.PostID(info.ID),
		MediaAssets: assets,
		PrimaryURL:  domain.PrimaryAssetURL(assets),
		Analysis:    analysis,
		Structured:  vision.ParseStructured(analysis),
		CompletedAt: time.Now(),
	}, nil
}

// analyzeAssets downloads assets into a per-run temp directory, routes the
// set to the vision client by shape and returns the description. The temp
// directory is removed on every path. A failed video download aborts the
// run; failed image downloads are tolerated while at least one asset
// remains usable.
func (c *Coordinator) analyzeAssets(ctx context.Context, id domain.PostID, assets []domain.MediaAsset) (string, error) {
	tempDir := filepath.Join(c.deps.TempPath, uuid.New().String())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", domain.NewPipelineError(id, "download", fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	var videoPaths []string
	var imagePaths []string
	for i, asset := range assets {
		dest := filepath.Join(tempDir, fmt.Sprintf("asset_%d%s", i, assetExt(asset)))
		local, err := c.deps.Downloader.Fetch(ctx, asset, dest)
		if err != nil {
			if asset.Type == domain.MediaTypeVideo {
				return "", domain.NewPipelineError(id, "download", err)
			}
			c.deps.Logger.Warn("image download failed, continuing",
				"post_id", id, "url", asset.URL, "error", err)
			continue
		}
		if asset.Type == domain.MediaTypeVideo {
			videoPaths = append(videoPaths, local)
		} else {
			imagePaths = append(imagePaths, local)
		}
	}
	if len(videoPaths) == 0 && len(imagePaths) == 0 {
		return "", domain.NewPipelineError(id, "download", domain.ErrDownloadFailed)
	}

	var analysis string
	var err error
	switch {
	case len(videoPaths) > 0 && len(imagePaths) > 0:
		analysis, err = c.deps.Analyzer.AnalyzeMixed(ctx, videoPaths, imagePaths)
	case len(videoPaths) > 0:
		analysis, err = c.deps.Analyzer.AnalyzeVideo(ctx, videoPaths, nil)
	default:
		analysis, err = c.deps.Analyzer.AnalyzeImages(ctx, imagePaths)
	}
	if err != nil {
		return "", domain.NewPipelineError(id, "analyze",
			fmt.Errorf("%w: %v", domain.ErrAnalysisFailed, err))
	}
	return analysis, nil
}

func (c *Coordinator) scheduleSend(contentID, text string) {
	if contentID == "" {
		return
	}
	c.deps.Scheduler.Dispatch(func(ctx context.Context) error {
		return c.deps.Notifier.Send(ctx, contentID, text)
	})
}

func (c *Coordinator) scheduleSendFailure(contentID string, cause error) {
	if contentID == "" {
		return
	}
	message := domain.UserMessage(cause)
	c.deps.Scheduler.Dispatch(func(ctx context.Context) error {
		return c.deps.Notifier.SendFailure(ctx, contentID, message)
	})
}

func assetExt(asset domain.MediaAsset) string {
	if asset.Type == domain.MediaTypeVideo {
		return ".mp4"
	}
	return ".jpg"
}

func validateTikTokURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return domain.ErrInvalidInput
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "tiktok.com" && !strings.HasSuffix(host, ".tiktok.com") {
		return domain.ErrInvalidInput
	}
	return nil
}

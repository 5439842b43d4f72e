package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/reelscope/reelscope/internal/domain"
	"github.com/reelscope/reelscope/pkg/tikwm"
)

// mockPipeline implements PostPipeline and TikTokPipeline with pluggable
// behavior per test.
type mockPipeline struct {
	lookupFunc  func(ctx context.Context, url string) (domain.PipelineResult, error)
	analyzeFunc func(ctx context.Context, url, contentID string) (domain.PipelineResult, error)
	tiktokFunc  func(ctx context.Context, url, contentID, version string) (domain.PipelineResult, error)
	infoFunc    func(ctx context.Context, url, version string) (*tikwm.PostInfo, error)
}

func (m *mockPipeline) Lookup(ctx context.Context, url string) (domain.PipelineResult, error) {
	return m.lookupFunc(ctx, url)
}

func (m *mockPipeline) Analyze(ctx context.Context, url, contentID string) (domain.PipelineResult, error) {
	return m.analyzeFunc(ctx, url, contentID)
}

func (m *mockPipeline) AnalyzeTikTok(ctx context.Context, url, contentID, version string) (domain.PipelineResult, error) {
	return m.tiktokFunc(ctx, url, contentID, version)
}

func (m *mockPipeline) TikTokInfo(ctx context.Context, url, version string) (*tikwm.PostInfo, error) {
	return m.infoFunc(ctx, url, version)
}

type mockStats struct {
	inflight int
	cached   int
}

func (m *mockStats) InflightCount() int { return m.inflight }
func (m *mockStats) CacheLen() int      { return m.cached }

type mockBrowser struct {
	running bool
}

func (m *mockBrowser) Running() bool { return m.running }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

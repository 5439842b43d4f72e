package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reelscope/reelscope/internal/domain"
	"github.com/reelscope/reelscope/pkg/tikwm"
)

func catVideoInfo() *tikwm.PostInfo {
	return &tikwm.PostInfo{
		ID:       "7312",
		Title:    "cat jumps",
		Author:   tikwm.Author{UniqueID: "catlover", Nickname: "Cat Lover"},
		Duration: 14,
		PlayURL:  "https://cdn/play.mp4",
		HDURL:    "https://cdn/hd.mp4",
	}
}

func TestDownload_Success(t *testing.T) {
	pipeline := &mockPipeline{
		infoFunc: func(ctx context.Context, url, version string) (*tikwm.PostInfo, error) {
			if version != "hd" {
				t.Errorf("version = %q, want hd", version)
			}
			return catVideoInfo(), nil
		},
	}
	h := NewTikTokHandler(pipeline, testLogger())

	body := `{"url":"https://www.tiktok.com/@catlover/video/7312","version":"hd"}`
	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp DownloadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.TikTokInfo.ID != "7312" {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Data.Downloads) != 1 || resp.Data.Downloads[0].URL != "https://cdn/hd.mp4" {
		t.Errorf("downloads = %+v", resp.Data.Downloads)
	}
	if resp.Data.Summary != "cat jumps by Cat Lover (14s)" {
		t.Errorf("summary = %q", resp.Data.Summary)
	}
}

func TestDownload_MissingURL(t *testing.T) {
	h := NewTikTokHandler(&mockPipeline{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestInfo_Success(t *testing.T) {
	pipeline := &mockPipeline{
		infoFunc: func(ctx context.Context, url, version string) (*tikwm.PostInfo, error) {
			return catVideoInfo(), nil
		},
	}
	h := NewTikTokHandler(pipeline, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/tiktok-info?url=https://www.tiktok.com/@catlover/video/7312", nil)
	rec := httptest.NewRecorder()
	h.Info(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.Author.UniqueID != "catlover" {
		t.Errorf("response = %+v", resp)
	}
}

func TestInfo_PostUnavailable(t *testing.T) {
	pipeline := &mockPipeline{
		infoFunc: func(ctx context.Context, url, version string) (*tikwm.PostInfo, error) {
			return nil, domain.ErrPostUnavailable
		},
	}
	h := NewTikTokHandler(pipeline, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/tiktok-info?url=https://www.tiktok.com/x", nil)
	rec := httptest.NewRecorder()
	h.Info(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTikTokAnalyze_Success(t *testing.T) {
	pipeline := &mockPipeline{
		tiktokFunc: func(ctx context.Context, url, contentID, version string) (domain.PipelineResult, error) {
			return domain.PipelineResult{PostID: "7312", Analysis: "a cat jumping"}, nil
		},
	}
	h := NewTikTokHandler(pipeline, testLogger())

	body := `{"url":"https://www.tiktok.com/@catlover/video/7312","contentId":"c-9"}`
	req := httptest.NewRequest(http.MethodPost, "/tiktok-analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.PostID != "7312" || resp.Analysis != "a cat jumping" {
		t.Errorf("response = %+v", resp)
	}
}

func TestTikTokAnalyze_MissingContentID(t *testing.T) {
	h := NewTikTokHandler(&mockPipeline{}, testLogger())

	body := `{"url":"https://www.tiktok.com/@catlover/video/7312"}`
	req := httptest.NewRequest(http.MethodPost, "/tiktok-analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

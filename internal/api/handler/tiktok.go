package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/reelscope/reelscope/internal/domain"
	"github.com/reelscope/reelscope/pkg/tikwm"
)

// TikTokPipeline is the coordinator surface consumed by TikTok handlers.
type TikTokPipeline interface {
	AnalyzeTikTok(ctx context.Context, url, contentID, version string) (domain.PipelineResult, error)
	TikTokInfo(ctx context.Context, url, version string) (*tikwm.PostInfo, error)
}

// TikTokHandler handles TikTok metadata, download and analysis requests.
type TikTokHandler struct {
	pipeline TikTokPipeline
	logger   *slog.Logger
}

// NewTikTokHandler creates a new TikTok handler.
func NewTikTokHandler(pipeline TikTokPipeline, logger *slog.Logger) *TikTokHandler {
	return &TikTokHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// DownloadRequest is the JSON request body for download URL resolution.
type DownloadRequest struct {
	URL     string `json:"url"`
	Version string `json:"version,omitempty"`
}

// DownloadData is the payload of a successful download resolution.
type DownloadData struct {
	TikTokInfo *tikwm.PostInfo     `json:"tiktok_info"`
	Downloads  []domain.MediaAsset `json:"downloads"`
	Summary    string              `json:"summary"`
}

// DownloadResponse is the JSON response for download resolution.
type DownloadResponse struct {
	Success bool         `json:"success"`
	Data    DownloadData `json:"data"`
}

// InfoResponse is the JSON response for metadata lookups.
type InfoResponse struct {
	Success bool            `json:"success"`
	Data    *tikwm.PostInfo `json:"data"`
}

// TikTokAnalyzeRequest is the JSON request body for TikTok analysis.
type TikTokAnalyzeRequest struct {
	URL       string `json:"url"`
	ContentID string `json:"contentId"`
	Version   string `json:"version,omitempty"`
}

// Download handles POST /download
func (h *TikTokHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	info, err := h.pipeline.TikTokInfo(r.Context(), req.URL, req.Version)
	if err != nil {
		h.writeDomainError(w, "download resolution failed", req.URL, err)
		return
	}

	writeJSON(w, http.StatusOK, DownloadResponse{
		Success: true,
		Data: DownloadData{
			TikTokInfo: info,
			Downloads:  tikwm.DownloadURLs(info),
			Summary:    tikwm.Summary(info),
		},
	})
}

// Info handles GET /tiktok-info?url=&version=
func (h *TikTokHandler) Info(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	info, err := h.pipeline.TikTokInfo(r.Context(), url, r.URL.Query().Get("version"))
	if err != nil {
		h.writeDomainError(w, "info lookup failed", url, err)
		return
	}

	writeJSON(w, http.StatusOK, InfoResponse{Success: true, Data: info})
}

// Analyze handles POST /tiktok-analyze
func (h *TikTokHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req TikTokAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.ContentID == "" {
		writeError(w, http.StatusBadRequest, "url and contentId are required")
		return
	}

	result, err := h.pipeline.AnalyzeTikTok(r.Context(), req.URL, req.ContentID, req.Version)
	if err != nil {
		h.writeDomainError(w, "tiktok analysis failed", req.URL, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success:            true,
		PostID:             result.PostID.String(),
		Analysis:           result.Analysis,
		Structured:         result.Structured,
		Cached:             result.Cached,
		ContentAPIResponse: "scheduled",
	})
}

func (h *TikTokHandler) writeDomainError(w http.ResponseWriter, op, url string, err error) {
	status := domain.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, "url", url, "error", err)
	} else {
		h.logger.Info(op, "url", url, "error", err)
	}
	writeError(w, status, domain.UserMessage(err))
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/reelscope/reelscope/internal/domain"
)

// PostPipeline is the coordinator surface consumed by post handlers.
type PostPipeline interface {
	Lookup(ctx context.Context, url string) (domain.PipelineResult, error)
	Analyze(ctx context.Context, url, contentID string) (domain.PipelineResult, error)
}

// PostHandler handles post lookup and analysis requests.
type PostHandler struct {
	pipeline PostPipeline
	logger   *slog.Logger
}

// NewPostHandler creates a new post handler.
func NewPostHandler(pipeline PostPipeline, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// VideoResponse is the JSON response for media lookups.
type VideoResponse struct {
	Success     bool                `json:"success"`
	PostID      string              `json:"postId"`
	MediaAssets []domain.MediaAsset `json:"mediaAssets"`
	PrimaryURL  string              `json:"primaryUrl"`
	Cached      bool                `json:"cached"`
}

// AnalyzeRequest is the JSON request body for analysis.
type AnalyzeRequest struct {
	URL       string `json:"url"`
	ContentID string `json:"contentId"`
}

// AnalyzeResponse is the JSON response for analysis requests.
type AnalyzeResponse struct {
	Success            bool           `json:"success"`
	PostID             string         `json:"postId"`
	Analysis           string         `json:"analysis"`
	Structured         map[string]any `json:"structured,omitempty"`
	Cached             bool           `json:"cached"`
	ContentAPIResponse string         `json:"contentApiResponse"`
}

// Video handles GET /video?url=
func (h *PostHandler) Video(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	result, err := h.pipeline.Lookup(r.Context(), url)
	if err != nil {
		h.writeDomainError(w, "lookup failed", url, err)
		return
	}

	writeJSON(w, http.StatusOK, VideoResponse{
		Success:     true,
		PostID:      result.PostID.String(),
		MediaAssets: result.MediaAssets,
		PrimaryURL:  result.PrimaryURL,
		Cached:      result.Cached,
	})
}

// Analyze handles POST /analyze
func (h *PostHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.ContentID == "" {
		writeError(w, http.StatusBadRequest, "url and contentId are required")
		return
	}

	result, err := h.pipeline.Analyze(r.Context(), req.URL, req.ContentID)
	if err != nil {
		h.writeDomainError(w, "analysis failed", req.URL, err)
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

func (h *PostHandler) writeDomainError(w http.ResponseWriter, op, url string, err error) {
	status := domain.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, "url", url, "error", err)
	} else {
		h.logger.Info(op, "url", url, "error", err)
	}
	writeError(w, status, domain.UserMessage(err))
}

package handler

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// PipelineStats exposes coordinator counters for the health endpoint.
type PipelineStats interface {
	InflightCount() int
	CacheLen() int
}

// BrowserStatus reports whether the shared browser session is alive.
type BrowserStatus interface {
	Running() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	stats   PipelineStats
	browser BrowserStatus
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats PipelineStats, browser BrowserStatus) *HealthHandler {
	return &HealthHandler{
		stats:   stats,
		browser: browser,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	BrowserRunning bool   `json:"browser_running"`
	Inflight       int    `json:"inflight"`
	CacheEntries   int    `json:"cache_entries"`
}

// Live handles GET /health - liveness probe. A dead browser degrades the
// status but keeps the process reporting, so operators see why.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	running := h.browser.Running()
	if !running {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         status,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		BrowserRunning: running,
		Inflight:       h.stats.InflightCount(),
		CacheEntries:   h.stats.CacheLen(),
	})
}

package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reelscope/reelscope/internal/api/handler"
	mw "github.com/reelscope/reelscope/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured. When apiKey
// is empty the service runs open; health stays unauthenticated either way.
func NewRouter(
	postHandler *handler.PostHandler,
	tiktokHandler *handler.TikTokHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(middleware.Recoverer)
	// Analysis runs can hold a request for minutes.
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", healthHandler.Live)

	r.Group(func(r chi.Router) {
		if apiKey != "" {
			r.Use(mw.APIKeyAuth(apiKey))
		}

		r.Get("/video", postHandler.Video)
		r.Post("/analyze", postHandler.Analyze)

		r.Post("/download", tiktokHandler.Download)
		r.Get("/tiktok-info", tiktokHandler.Info)
		r.Post("/tiktok-analyze", tiktokHandler.Analyze)
	})

	return r
}

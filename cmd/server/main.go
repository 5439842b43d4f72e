package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelscope/reelscope/internal/api"
	"github.com/reelscope/reelscope/internal/api/handler"
	"github.com/reelscope/reelscope/internal/browser"
	"github.com/reelscope/reelscope/internal/cache"
	"github.com/reelscope/reelscope/internal/config"
	"github.com/reelscope/reelscope/internal/downloader"
	"github.com/reelscope/reelscope/internal/extractor"
	"github.com/reelscope/reelscope/internal/inflight"
	"github.com/reelscope/reelscope/internal/notify"
	"github.com/reelscope/reelscope/internal/pipeline"
	"github.com/reelscope/reelscope/pkg/contentapi"
	"github.com/reelscope/reelscope/pkg/tikwm"
	"github.com/reelscope/reelscope/pkg/vision"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("reelscope", version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.TempPath, 0o755); err != nil {
		return fmt.Errorf("create temp storage: %w", err)
	}

	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	pool, err := browser.NewPool(cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer pool.Close()

	dispatcher := notify.NewDispatcher(notify.Config{
		Workers: cfg.Notifier.Workers,
		Timeout: cfg.Notifier.Timeout,
	}, logger)
	dispatcher.Start()

	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Cache:      store,
		Tracker:    inflight.New(),
		Sessions:   sessionPool{pool},
		Extractor:  extractor.NewInstagram(logger),
		Downloader: downloader.NewHTTPDownloader(cfg.Download, logger),
		Analyzer: vision.NewClient(vision.Config{
			APIKey:  cfg.Analysis.APIKey,
			BaseURL: cfg.Analysis.BaseURL,
			Model:   cfg.Analysis.Model,
			Timeout: cfg.Analysis.Timeout,
		}),
		Notifier: contentapi.NewClient(contentapi.Config{
			BaseURL: cfg.Notifier.BaseURL,
			APIKey:  cfg.Notifier.APIKey,
			Timeout: cfg.Notifier.Timeout,
		}),
		Scheduler: dispatcher,
		TikTok: tikwm.NewClient(tikwm.Config{
			BaseURL: cfg.TikTok.BaseURL,
			Timeout: cfg.TikTok.Timeout,
		}),
		TempPath:    cfg.Storage.TempPath,
		AnalysisTTL: cfg.Cache.AnalysisTTL,
		Logger:      logger,
	})

	router := api.NewRouter(
		handler.NewPostHandler(coordinator, logger),
		handler.NewTikTokHandler(coordinator, logger),
		handler.NewHealthHandler(coordinator, pool),
		cfg.Server.APIKey,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := dispatcher.Stop(10 * time.Second); err != nil {
		logger.Warn("notify dispatcher drain incomplete", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// newStore picks the cache backend: SQLite when a path is configured so
// analyses survive restarts, in-memory otherwise.
func newStore(cfg *config.Config, logger *slog.Logger) (cache.Store, error) {
	if cfg.Cache.SQLitePath != "" {
		return cache.NewSQLite(cfg.Cache.SQLitePath, logger)
	}
	return cache.NewMemory(cfg.Cache.SweepInterval), nil
}

// sessionPool adapts the browser pool to the pipeline's interface.
type sessionPool struct {
	pool *browser.Pool
}

func (s sessionPool) NewPage(ctx context.Context) (pipeline.Page, error) {
	return s.pool.NewPage(ctx)
}

func (s sessionPool) Running() bool {
	return s.pool.Running()
}

// Package app assembles the conversation pipeline shared by the bot and
// console entry points.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/iconidentify/clipgrab/internal/artifact"
	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/downloader"
	"github.com/iconidentify/clipgrab/internal/extractor"
	"github.com/iconidentify/clipgrab/internal/fetcher"
	"github.com/iconidentify/clipgrab/internal/repository"
	"github.com/iconidentify/clipgrab/internal/service"
	"github.com/iconidentify/clipgrab/internal/translator"
	"github.com/iconidentify/clipgrab/internal/worker"
	"github.com/iconidentify/clipgrab/pkg/gtranslate"
	"github.com/iconidentify/clipgrab/pkg/tikwm"
	"github.com/iconidentify/clipgrab/pkg/ytdlp"
)

// App holds the wired components.
type App struct {
	Dispatcher *service.Dispatcher
	Sessions   *repository.InMemorySessionRepository
	Pool       *worker.Pool
	Fetcher    *fetcher.Fetcher
	Artifacts  *artifact.Manager

	cfg    *config.Config
	logger *slog.Logger
}

// New wires every component around the given transport. Optional backends
// that cannot be constructed are logged and left out of the chains.
func New(cfg *config.Config, transport service.Transport, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	dl := downloader.NewHTTPDownloader(cfg.Download, logger)

	var (
		meta   extractor.MetadataSource
		tool   fetcher.ToolRunner
		format string
	)
	if yt, err := ytdlp.NewClient(cfg.YTDLP); err != nil {
		logger.Warn("yt-dlp unavailable, continuing without it", "path", cfg.YTDLP.Path, "error", err)
	} else {
		meta, tool, format = yt, yt, yt.Format()
	}

	var (
		captionLookup extractor.LookupSource
		mediaLookup   fetcher.LookupSource
	)
	if cfg.TikWM.Enabled {
		tw := tikwm.NewClient(cfg.TikWM, cfg.Download.UserAgent)
		captionLookup, mediaLookup = tw, tw
	}

	var backend translator.Backend
	if cfg.Translate.Enabled {
		backend = gtranslate.NewClient(cfg.Translate)
	}

	sessions := repository.NewInMemorySessionRepository()
	pool := worker.NewPool(worker.Config{
		Workers:   cfg.Worker.Count,
		QueueSize: cfg.Worker.QueueSize,
	}, logger)
	f := fetcher.New(fetcher.DefaultChains(fetcher.Sources{
		HTTP:   dl,
		Lookup: mediaLookup,
		Tool:   tool,
		Format: format,
	}), logger)
	artifacts := artifact.NewManager(cfg.Storage, logger)

	d := service.NewDispatcher(
		sessions,
		extractor.New(extractor.DefaultStrategies(meta, captionLookup, dl), logger),
		translator.New(backend, cfg.Translate.TargetLocale, logger),
		f,
		artifacts,
		transport,
		pool,
		logger,
	)

	return &App{
		Dispatcher: d,
		Sessions:   sessions,
		Pool:       pool,
		Fetcher:    f,
		Artifacts:  artifacts,
		cfg:        cfg,
		logger:     logger,
	}
}

// RunJanitor prunes idle sessions until ctx is done. It returns immediately
// when no idle TTL is configured.
func (a *App) RunJanitor(ctx context.Context) error {
	ttl := a.cfg.Session.IdleTTL
	if ttl <= 0 {
		return nil
	}
	interval := a.cfg.Session.PruneInterval
	if interval <= 0 {
		interval = ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.Sessions.Prune(ctx, ttl)
			if err != nil {
				a.logger.Warn("session prune failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("pruned idle sessions", "count", n)
			}
		}
	}
}

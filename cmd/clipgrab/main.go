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

	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/clipgrab/internal/api"
	"github.com/iconidentify/clipgrab/internal/api/handler"
	"github.com/iconidentify/clipgrab/internal/app"
	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/telegram"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("clipgrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting clipgrab",
		"version", Version,
		"build_time", BuildTime,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("clipgrab stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("clipgrab stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := telegram.New(cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}

	a := app.New(cfg, bot, logger)
	a.Pool.Start()
	defer func() {
		if err := a.Pool.Stop(30 * time.Second); err != nil {
			logger.Warn("worker pool did not stop cleanly", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bot.Run(gctx, a.Dispatcher)
	})

	g.Go(func() error {
		return a.RunJanitor(gctx)
	})

	if cfg.Server.Enabled {
		healthHandler := handler.NewHealthHandler(a.Sessions, a.Pool, cfg.Storage.TempPath)
		srv := &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      api.NewRouter(healthHandler, cfg.Server.APIKey, logger),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}

		g.Go(func() error {
			logger.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

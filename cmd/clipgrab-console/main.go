package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iconidentify/clipgrab/internal/app"
	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/console"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	saveDir := flag.String("save-dir", "", "Directory to keep a copy of downloaded videos")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays readable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if *saveDir != "" {
		if err := os.MkdirAll(*saveDir, 0755); err != nil {
			logger.Error("failed to create save directory", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interactive := console.IsInteractive(os.Stdin)
	term := console.New(os.Stdout, console.Options{
		Interactive: interactive,
		SaveDir:     *saveDir,
	}, logger)

	a := app.New(cfg, term, logger)

	if interactive {
		fmt.Println("Send a TikTok or YouTube link. /copy and /download press the buttons, /quit exits.")
	}

	if err := term.Run(ctx, os.Stdin, a.Dispatcher.Handle); err != nil {
		logger.Error("console stopped with error", "error", err)
		os.Exit(1)
	}
}

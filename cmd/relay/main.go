package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/V4T54L/log-relay/internal/app"
	"github.com/V4T54L/log-relay/internal/pkg/config"
	"github.com/V4T54L/log-relay/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := app.New(cfg, logger)
	if err := relay.Start(); err != nil {
		logger.Error("failed to start relay", "error", err)
		os.Exit(1)
	}

	// --- Serve until signalled ---
	if err := relay.Run(ctx); err != nil {
		logger.Error("relay stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("relay shut down gracefully")
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/pkg/logger"
	"github.com/leonclem/one-minute-menu-sub003/service"
	"github.com/leonclem/one-minute-menu-sub003/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	store, err := service.OpenPGStore(context.Background(), &cfg.Database, slog.Default())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	visionSvc := service.NewVisionService(&cfg.Vision)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		"concurrency", cfg.Worker.Concurrency,
		"poll_interval", cfg.Worker.PollInterval.String(),
		"max_retries", cfg.Worker.MaxRetries)

	w := worker.New(store, visionSvc, cfg.Worker, slog.Default())
	if err := w.Run(ctx); err != nil {
		slog.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("worker exited gracefully")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-fetcher/internal/app"
	"github.com/samvad-hq/samvad-fetcher/internal/config"
	"github.com/samvad-hq/samvad-fetcher/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fetcher failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	log.InfoObj("fetcher starting", "config", map[string]any{
		"app_name":         cfg.AppName,
		"app_env":          cfg.Env,
		"targets_file":     cfg.TargetsFile,
		"publishers_file":  cfg.PublishersFile,
		"fetch_interval":   cfg.FetchInterval.String(),
		"timeout":          cfg.Timeout.String(),
		"follow_redirects": cfg.FollowRedirects,
		"stealthy_headers": cfg.StealthyHeaders,
		"storage_type":     cfg.StorageType,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize runner", "error", err.Error())
		return err
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("runner: %w", err)
	}

	return nil
}

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-fetcher/internal/collector"
	"github.com/samvad-hq/samvad-fetcher/internal/config"
	"github.com/samvad-hq/samvad-fetcher/internal/logger"
	"github.com/samvad-hq/samvad-fetcher/internal/storage"
	"github.com/samvad-hq/samvad-fetcher/pkg/adaptor"
	"github.com/samvad-hq/samvad-fetcher/pkg/fetcher"
	"github.com/samvad-hq/samvad-fetcher/pkg/publishers"
	"github.com/samvad-hq/samvad-fetcher/pkg/targets"
)

// Runner owns the fetch loop. It loads targets, wires the engine, the
// publishers and the dedupe store, and releases them when Run returns.
type Runner struct {
	cfg      *config.Config
	targets  []targets.Target
	fanout   *publishers.Fanout
	service  *collector.Service
	interval time.Duration
	log      logger.Logger
	store    storage.Store
}

// NewRunner builds a runner from config files.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.OrNop(log)
	if ctx == nil {
		ctx = context.Background()
	}

	if err := targets.Load(cfg.TargetsFile); err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}
	tgts := targets.All()
	targetIDs := make([]string, 0, len(tgts))
	for _, t := range tgts {
		targetIDs = append(targetIDs, t.ID)
	}
	log.InfoObj("targets loaded", "targets_meta", map[string]any{
		"count": len(targetIDs),
		"ids":   targetIDs,
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		FetchTTL:        cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"fetch_ttl_seconds":        int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	engine := fetcher.New(fetcher.Config{
		FollowRedirects:  cfg.FollowRedirects,
		Timeout:          cfg.Timeout,
		StealthyHeaders:  cfg.StealthyHeaders,
		AdaptorArguments: adaptor.Arguments{adaptor.ArgKeepComments: cfg.KeepComments},
		Proxy:            cfg.Proxy,
		Debug:            cfg.Debug,
		Logger:           log,
	})

	return &Runner{
		cfg:      cfg,
		targets:  tgts,
		fanout:   fanout,
		service:  collector.NewService(engine, fanout, log, store),
		interval: cfg.FetchInterval,
		log:      log,
		store:    store,
	}, nil
}

// buildFanout returns an empty fanout when no publishers file is configured.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		log.InfoObj("no publishers file configured; snapshots are only logged", "publishers_file", path)
		return publishers.NewFanout(nil, log), nil
	}

	sinks, err := publishers.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}

	fanout, err := publishers.DefaultBuilders().Open(ctx, sinks, log)
	if err != nil {
		return nil, fmt.Errorf("open publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(sinks))
	for _, sink := range sinks {
		summaries = append(summaries, map[string]string{
			"id":   sink.ID,
			"type": sink.Type,
		})
	}
	log.InfoObj("publishers opened", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return fanout, nil
}

// Run performs one pass when no interval is configured, otherwise it
// repeats passes on the interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	r.log.InfoObj("fetch loop starting", "runner_state", map[string]any{
		"targets_count":    len(r.targets),
		"publishers_count": r.fanout.Size(),
		"fetch_interval":   r.interval.String(),
	})

	if r.interval <= 0 {
		return r.runOnce(ctx)
	}

	if err := r.runOnce(ctx); err != nil {
		r.log.ErrorObj("initial fetch pass failed", "error", err.Error())
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("fetch loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				r.log.ErrorObj("scheduled fetch pass failed", "error", err.Error())
			}
		}
	}
}

// runOnce performs a single pass across all targets.
func (r *Runner) runOnce(ctx context.Context) error {
	start := time.Now()
	r.log.InfoObj("fetch pass started", "pass_meta", map[string]any{
		"targets_count": len(r.targets),
		"started_at":    start.UTC(),
	})
	if err := r.service.Run(ctx, r.targets); err != nil {
		return err
	}
	r.log.InfoObj("fetch pass completed", "pass_meta", map[string]any{
		"targets_count": len(r.targets),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return nil
}

// close releases publishers and the store, logging any errors encountered.
func (r *Runner) close() {
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("publisher close failed", "error", err.Error())
	}
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.log.ErrorObj("storage close failed", "error", err.Error())
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/duplifind/duplifind/internal/action"
	"github.com/duplifind/duplifind/internal/api"
	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/config"
	"github.com/duplifind/duplifind/internal/errs"
	"github.com/duplifind/duplifind/internal/pipeline"
	"github.com/duplifind/duplifind/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled re-scan job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load(configPath)
	if err != nil {
		return errs.Input("load config", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("duplifind starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"data_dir", cfg.DataDir,
		"scan_roots", cfg.Scan.Roots)

	var c *cache.Cache
	if cfg.Cache.Enabled {
		c, err = cache.Open(cfg.CacheOptions())
		if err != nil {
			return errs.Cache("open", err)
		}
		defer c.Close()
	}

	auditLog, err := action.OpenAuditLog(cfg.Action.AuditDir)
	if err != nil {
		return errs.IO("open audit log", cfg.Action.AuditDir, err)
	}
	defer auditLog.Close()

	executor := action.NewExecutor(auditLog)
	mgr := pipeline.NewManager()
	scanCfg := cfg.PipelineConfig()

	sched := scheduler.New()
	if cfg.Schedule != "" {
		if err := sched.SetScanJob(cfg.Schedule, func() {
			slog.Info("scheduled scan triggered")
			if _, err := mgr.Start(context.Background(), scanCfg, c, nil); err != nil {
				slog.Warn("scheduled scan start", "error", err)
			}
		}); err != nil {
			slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
		}
	}
	if c != nil {
		if err := sched.AddJob("0 3 * * *", func() {
			slog.Info("cache prune triggered")
			evicted, err := c.Prune(context.Background(), time.Now())
			if err != nil {
				slog.Error("cache prune failed", "error", err)
				return
			}
			slog.Info("cache prune complete", "evicted", evicted)
		}); err != nil {
			slog.Warn("failed to register cache-prune job", "error", err)
		}
	}
	sched.Start()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(cfg.HTTPAddr, mgr, c, scanCfg, executor, cfg.ActionOptions(), sched, version)

	// The HTTP server and the scheduler shut down together: whichever
	// stops first (server error, or runCtx cancellation) tears down the
	// other before runServe returns.
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return errs.IO("serve", cfg.HTTPAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("duplifind stopped")
	return nil
}

// Package main is the entry point of the StudyPets background worker.
//
// The worker pays the weekly leaderboard rewards on a cron schedule in the
// platform timezone. Distribution is idempotent per week, so running several
// workers or restarting one mid-run never pays twice.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/studypets/studypets-core/config"
	"github.com/studypets/studypets-core/internal/bootstrap"
	"github.com/studypets/studypets-core/internal/infrastructure/scheduler/jobs"
	"github.com/studypets/studypets-core/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Setup(logger.Options{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Attrs: []slog.Attr{
			slog.String("service", "worker"),
			slog.String("version", cfg.App.Version),
		},
	})
	log.Info("starting StudyPets worker",
		"env", cfg.App.Environment,
		"weekly_rewards_cron", cfg.Scheduler.WeeklyRewardsCron,
	)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}
	if cfg.Database.URL == "" {
		return errors.New("worker needs DATABASE_URL; the in-memory store is only visible to the API process")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. INFRASTRUCTURE
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	app := bootstrap.NewApplication(infra)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := bootstrap.NewScheduler(infra, app)
	if err != nil {
		return err
	}

	// Catch up a slot missed while no worker was running.
	if cfg.Scheduler.RunOnStart {
		if _, err := sched.RunNow(ctx, jobs.JobNameDistributeWeeklyRewards); err != nil {
			log.Error("startup distribution failed", "error", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. RUN UNTIL SIGNALLED
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })

	log.Info("worker is running", "jobs", len(sched.ListJobs()))

	if err := g.Wait(); err != nil {
		log.Warn("shutdown completed with errors", "error", err)
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

// Package main is the entry point of the StudyPets API server.
//
// The server exposes practice sessions, the daily wheel, the coin and food
// economy, the pet collection and the weekly leaderboard over JSON/HTTP.
// Weekly rewards are paid by cmd/worker, except on the in-memory development
// store where the API runs the scheduler itself.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studypets/studypets-core/config"
	"github.com/studypets/studypets-core/internal/bootstrap"
	"github.com/studypets/studypets-core/internal/infrastructure/scheduler"
	httpserver "github.com/studypets/studypets-core/internal/interface/http"
	"github.com/studypets/studypets-core/internal/interface/http/handlers"
	"github.com/studypets/studypets-core/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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
			slog.String("service", "api"),
			slog.String("version", cfg.App.Version),
		},
	})
	log.Info("starting StudyPets API",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
	)

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
	// 3. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if infra.DB != nil {
		health.AddCheck("postgres", infra.DB.Ping)
	}
	if infra.Cache != nil {
		health.AddOptionalCheck("redis", infra.Cache.Ping)
	}

	verifier := handlers.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.ClockSkew)

	server := httpserver.NewServer(httpserver.Config{
		Addr:              cfg.HTTP.Addr,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		RequestsPerMinute: cfg.HTTP.RequestsPerMin,
		Version:           cfg.App.Version,
	}, httpserver.Dependencies{
		Auth:   handlers.NewAuthenticator(verifier, infra.Store.Keys()),
		Policy: app.Policy,

		CreateSession:     app.CreateSession,
		SubmitAnswer:      app.SubmitAnswer,
		CompleteSession:   app.CompleteSession,
		DailyStatus:       app.DailyStatus,
		ExchangeFood:      app.ExchangeFood,
		Pull:              app.Pull,
		PetEvolution:      app.PetEvolution,
		CombinePets:       app.CombinePets,
		AcknowledgeReward: app.AcknowledgeReward,
		SyncSubscription:  app.SyncSubscription,
		DistributeRewards: app.DistributeRewards,

		Students:    app.Students,
		Practice:    app.Practice,
		Collection:  app.Collection,
		Leaderboard: app.Leaderboard,

		HealthChecker: health,
		Logger:        log,
	})

	// Only this process can see an in-memory store, so it pays the rewards.
	var sched *scheduler.Scheduler
	if infra.DB == nil && cfg.Scheduler.Enabled {
		sched, err = bootstrap.NewScheduler(infra, app)
		if err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. RUN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...",
			"timeout", cfg.App.ShutdownTimeout.String(),
			"uptime", server.Uptime().Round(time.Second).String(),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", "error", err)
			return err
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		log.Warn("shutdown completed with errors", "error", err)
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

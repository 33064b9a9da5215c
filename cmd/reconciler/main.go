// Command reward-reconciler applies migrations and periodically settles
// referrer rewards for every referrer in the profile store.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/config"
	"github.com/challengeties/rewards/internal/limiter"
	"github.com/challengeties/rewards/internal/logging"
	"github.com/challengeties/rewards/internal/migrate"
	"github.com/challengeties/rewards/internal/notify"
	"github.com/challengeties/rewards/internal/repository/postgres"
	"github.com/challengeties/rewards/internal/service"
	"github.com/challengeties/rewards/internal/worker"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	// Flags override the config file and environment.
	cfgPath := flag.String("config", "rewards.yaml", "config file (optional)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN")
	every := flag.Duration("every", 0, "sweep interval")
	nudgeWindow := flag.Duration("nudge-window", 0, "min time between milestone nudges per user")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	if *dsn != "" {
		cfg.Postgres.DSN = *dsn
	}
	interval := cfg.ReconcileEvery()
	if *every > 0 {
		interval = *every
	}
	window := cfg.NudgeWindow()
	if *nudgeWindow > 0 {
		window = *nudgeWindow
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Dev)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.Duration("every", interval),
	)

	if cfg.Postgres.DSN == "" {
		logger.Fatal("missing postgres dsn (--dsn or REWARDS_POSTGRES_DSN)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.Postgres.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	profiles := postgres.NewProfileRepo(db)
	outbox := notify.NewOutbox(db.Pool)
	async := notify.NewAsync(outbox, outbox, logger, 10*time.Second)
	defer async.Wait()
	nudges := notify.NewThrottled(async, limiter.NewPGWithQuerier(db.Pool, window), logger)

	milestones := service.NewMilestoneService(profiles, logger)
	reconciler := service.NewLoginReconciler(profiles, milestones,
		service.NewMilestoneNotifier(profiles, nudges, logger), logger)

	sched, err := worker.New(profiles, reconciler, interval, logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler start", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if err := sched.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
}

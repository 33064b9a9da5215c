package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/config"
	"github.com/challengeties/rewards/internal/limiter"
	"github.com/challengeties/rewards/internal/logging"
	"github.com/challengeties/rewards/internal/migrate"
	"github.com/challengeties/rewards/internal/notify"
	"github.com/challengeties/rewards/internal/referral"
	"github.com/challengeties/rewards/internal/repository"
	"github.com/challengeties/rewards/internal/repository/memory"
	"github.com/challengeties/rewards/internal/repository/mongo"
	"github.com/challengeties/rewards/internal/repository/postgres"
	"github.com/challengeties/rewards/internal/repository/sqlite"
	"github.com/challengeties/rewards/internal/service"
	"github.com/challengeties/rewards/internal/session"
)

// stateDir holds the device-local database when none is configured.
func stateDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "challengeties")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "challengeties")
}

func defaultSQLitePath() string { return filepath.Join(stateDir(), "local.db") }

// app is the wired object graph behind every subcommand.
type app struct {
	cfg *config.Config
	log *zap.Logger

	profiles repository.ProfileRepository
	kv       repository.KeyValueStore
	pending  *referral.PendingStore
	async    *notify.Async
	verifier *session.Verifier

	attribution *service.AttributionServiceImpl
	ledger      *service.TrophyLedgerImpl
	milestones  *service.MilestoneServiceImpl
	claims      *service.MilestoneClaimService
	reconciler  *service.LoginReconciler
	rewards     *service.Rewards

	closers []func()
}

func openApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	path := cfg.Local.SQLitePath
	if path == "" {
		path = defaultSQLitePath()
	}
	if path == ":memory:" {
		a.kv = memory.NewKV()
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
		kv, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		a.kv = kv
		a.closers = append(a.closers, func() { _ = kv.Close() })
	}
	a.pending = referral.NewPendingStore(a.kv)

	var (
		base     notify.Dispatcher = notify.NewLog(log)
		analytic notify.Analytics  = notify.NewLog(log)
		lim      limiter.Limiter   = limiter.NewMemory(cfg.NudgeWindow())
	)
	switch cfg.Store {
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.profiles = postgres.NewProfileRepo(db)
		outbox := notify.NewOutbox(db.Pool)
		base, analytic = outbox, outbox
		lim = limiter.NewPGWithQuerier(db.Pool, cfg.NudgeWindow())
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		a.profiles = mongo.NewProfileRepo(coll, cfg.Mongo.Retries)
	default:
		a.profiles = memory.NewProfileRepo()
	}

	a.async = notify.NewAsync(base, analytic, log, 10*time.Second)
	nudges := notify.NewThrottled(a.async, lim, log)

	if cfg.Auth.JWTKey != "" {
		a.verifier = session.NewVerifier([]byte(cfg.Auth.JWTKey), cfg.Auth.Issuer)
	}

	a.attribution = service.NewAttributionService(a.profiles, a.pending, a.kv, a.async, a.async, log,
		service.AttributionConfig{
			WaitAttempts: cfg.Rewards.ProfileWaitAttempts,
			WaitInterval: cfg.ProfileWaitInterval(),
		})
	a.ledger = service.NewTrophyLedger(a.profiles, log)
	a.milestones = service.NewMilestoneService(a.profiles, log)
	a.claims = service.NewMilestoneClaimService(a.profiles, log)
	a.reconciler = service.NewLoginReconciler(a.profiles, a.milestones,
		service.NewMilestoneNotifier(a.profiles, nudges, log), log)
	a.rewards = service.NewRewards(a.attribution, a.reconciler, log)

	ok = true
	return a, nil
}

// Close flushes background dispatches and releases connections in reverse order.
func (a *app) Close() {
	if a.async != nil {
		a.async.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// userID resolves the acting user from --token (verified) or --user.
func (a *app) userID(user, token string) (string, error) {
	if token != "" {
		if a.verifier == nil {
			return "", fmt.Errorf("--token needs auth.jwt_key / REWARDS_JWT_KEY")
		}
		return a.verifier.UserID(token)
	}
	if user == "" {
		return "", fmt.Errorf("--user or --token is required")
	}
	return user, nil
}

func loadLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Dev)
}

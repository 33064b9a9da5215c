// Package worker runs the periodic referral reward sweep.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/repository"
	"github.com/challengeties/rewards/internal/service"
)

// Reconciler settles one user's referrer rewards.
type Reconciler interface {
	Reconcile(ctx context.Context, userID string) (service.ReconcileReport, error)
}

// Scheduler sweeps every referrer on an interval so rewards are paid even for
// users who do not log in.
type Scheduler struct {
	sched    gocron.Scheduler
	profiles repository.ProfileRepository
	rec      Reconciler
	every    time.Duration
	log      *zap.Logger
}

func New(profiles repository.ProfileRepository, rec Reconciler, every time.Duration, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if every <= 0 {
		return nil, fmt.Errorf("worker: interval must be positive, got %s", every)
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("worker: new scheduler: %w", err)
	}
	return &Scheduler{sched: s, profiles: profiles, rec: rec, every: every, log: log}, nil
}

// Start schedules the sweep, running it once immediately. Runs never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.every),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("reconcile sweep failed", zap.Error(err))
			}
		}),
		gocron.WithName("referral-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("worker: schedule sweep: %w", err)
	}
	s.sched.Start()
	s.log.Info("reconcile sweep scheduled", zap.Duration("every", s.every))
	return nil
}

// Shutdown stops the scheduler and waits for a running sweep.
func (s *Scheduler) Shutdown() error { return s.sched.Shutdown() }

// Sweep reconciles every referrer once and returns how many were processed.
// A failing user is logged and skipped.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	ids, err := s.profiles.ListReferrers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list referrers: %w", err)
	}
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		rep, err := s.rec.Reconcile(ctx, id)
		if err != nil {
			s.log.Warn("reconcile user failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		done++
		if rep.PioneerGranted || len(rep.AmbassadorPaid) > 0 || rep.ReferrerBonus > 0 {
			s.log.Info("sweep paid rewards",
				zap.String("user_id", id),
				zap.Bool("pioneer", rep.PioneerGranted),
				zap.Ints("ambassador", rep.AmbassadorPaid),
				zap.Int64("referrer_bonus", rep.ReferrerBonus),
			)
		}
	}
	return done, nil
}

package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/challengeties/rewards/internal/repository"
)

// ReconcileReport summarizes one reconcile run.
type ReconcileReport struct {
	Activated         int
	PioneerGranted    bool
	AmbassadorPaid    []int
	ReferrerBonus     int64
	NotifiedThreshold int
}

// LoginReconciler runs the referrer-side reward checks for one user. The checks
// touch disjoint guards, so they run concurrently; a failing check is logged
// and never stops the others.
type LoginReconciler struct {
	profiles   repository.ProfileRepository
	milestones MilestoneService
	notifier   *MilestoneNotifier
	log        *zap.Logger
}

func NewLoginReconciler(
	profiles repository.ProfileRepository,
	milestones MilestoneService,
	notifier *MilestoneNotifier,
	log *zap.Logger,
) *LoginReconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginReconciler{profiles: profiles, milestones: milestones, notifier: notifier, log: log}
}

// Reconcile counts the user's activated referrals once and runs every check against it.
// Only the count query can fail the run.
func (r *LoginReconciler) Reconcile(ctx context.Context, userID string) (ReconcileReport, error) {
	log := r.log.With(zap.String("user_id", userID))
	activated, err := r.profiles.CountActivatedReferrals(ctx, userID)
	if err != nil {
		log.Error("count activated referrals", zap.Error(err))
		return ReconcileReport{}, err
	}
	rep := ReconcileReport{Activated: activated}
	if activated == 0 {
		return rep, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := r.milestones.GrantPioneer(gctx, userID, activated)
		if err != nil {
			log.Warn("pioneer check failed", zap.Error(err))
		}
		rep.PioneerGranted = ok
		return nil
	})
	g.Go(func() error {
		paid, err := r.milestones.GrantAmbassadorMilestones(gctx, userID, activated)
		if err != nil {
			log.Warn("ambassador check failed", zap.Error(err))
		}
		rep.AmbassadorPaid = paid
		return nil
	})
	g.Go(func() error {
		if _, err := r.milestones.SyncAmbassadorPaidFor(gctx, userID, activated); err != nil {
			log.Warn("ambassador bookkeeping failed", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		amount, err := r.milestones.PayReferrerBonuses(gctx, userID, activated)
		if err != nil {
			log.Warn("referrer bonus failed", zap.Error(err))
		}
		rep.ReferrerBonus = amount
		return nil
	})
	if r.notifier != nil {
		g.Go(func() error {
			threshold, sent, err := r.notifier.Check(gctx, userID, activated)
			if err != nil {
				log.Warn("milestone notifier failed", zap.Error(err))
			}
			if sent {
				rep.NotifiedThreshold = threshold
			}
			return nil
		})
	}
	_ = g.Wait()
	return rep, nil
}

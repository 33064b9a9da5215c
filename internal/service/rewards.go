package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/session"
)

// Rewards is the entry point the host calls on every authentication state change.
type Rewards struct {
	attribution AttributionService
	reconciler  *LoginReconciler
	log         *zap.Logger
}

func NewRewards(attribution AttributionService, reconciler *LoginReconciler, log *zap.Logger) *Rewards {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewards{attribution: attribution, reconciler: reconciler, log: log}
}

// OnAuthStateChanged attributes the user, if a referral is pending, and then settles
// the user's own referrer rewards. Failures are logged; the host never sees them.
func (r *Rewards) OnAuthStateChanged(ctx context.Context, userID, currentURL string) (Outcome, ReconcileReport) {
	if userID == "" {
		return OutcomeNone, ReconcileReport{}
	}
	outcome, err := r.attribution.Attribute(ctx, userID, currentURL)
	if err != nil {
		r.log.Warn("attribution failed", zap.String("user_id", userID), zap.Error(err))
	}
	if outcome == OutcomeProfileMissing {
		return outcome, ReconcileReport{}
	}
	rep, err := r.reconciler.Reconcile(ctx, userID)
	if err != nil {
		r.log.Warn("reconcile failed", zap.String("user_id", userID), zap.Error(err))
	}
	return outcome, rep
}

// HandleSignIn is OnAuthStateChanged for a context carrying the authenticated user.
func (r *Rewards) HandleSignIn(ctx context.Context, currentURL string) (Outcome, ReconcileReport, error) {
	userID, ok := session.UserIDFromCtx(ctx)
	if !ok {
		return OutcomeNone, ReconcileReport{}, errs.ErrUnauthorized
	}
	outcome, rep := r.OnAuthStateChanged(ctx, userID, currentURL)
	return outcome, rep, nil
}

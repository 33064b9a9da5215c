// Package service contains the referral attribution and reward ledger services.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/notify"
	"github.com/challengeties/rewards/internal/referral"
	"github.com/challengeties/rewards/internal/repository"
)

// ActivationShownKey is the local one-shot flag the UI reads after an activation.
const ActivationShownKey = "referral.activated.shown"

// Analytics event names.
const (
	EventReferralActivated = "referral_activated"
)

// Outcome describes how an attribution attempt ended.
type Outcome int

const (
	// OutcomeNone means nothing was pending.
	OutcomeNone Outcome = iota
	// OutcomeSelfReferral means the pending referrer was the user and was discarded.
	OutcomeSelfReferral
	// OutcomeAlreadyAttributed means the guard failed or a concurrent run won.
	OutcomeAlreadyAttributed
	// OutcomeProfileMissing means the profile never appeared and attribution was abandoned.
	OutcomeProfileMissing
	// OutcomeFailed means an unexpected store failure; safe to retry on the next login.
	OutcomeFailed
	// OutcomeActivated means the referrer was attributed.
	OutcomeActivated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSelfReferral:
		return "self-referral"
	case OutcomeAlreadyAttributed:
		return "already-attributed"
	case OutcomeProfileMissing:
		return "profile-missing"
	case OutcomeFailed:
		return "failed"
	case OutcomeActivated:
		return "activated"
	default:
		return "unknown"
	}
}

// AttributionService attributes a freshly authenticated user to a referrer.
type AttributionService interface {
	// Attribute runs once per authentication event. currentURL is the link the app
	// was opened with, if any.
	Attribute(ctx context.Context, userID, currentURL string) (Outcome, error)
}

// AttributionConfig tunes the profile-existence wait.
type AttributionConfig struct {
	WaitAttempts int
	WaitInterval time.Duration
}

// DefaultAttributionConfig waits up to 30 x 200ms for the profile document.
var DefaultAttributionConfig = AttributionConfig{WaitAttempts: 30, WaitInterval: 200 * time.Millisecond}

type AttributionServiceImpl struct {
	profiles  repository.ProfileRepository
	pending   *referral.PendingStore
	flags     repository.KeyValueStore
	push      notify.Dispatcher
	analytics notify.Analytics
	log       *zap.Logger
	cfg       AttributionConfig
	now       func() time.Time
}

// NewAttributionService constructs the attributor. push and analytics are fire-and-forget.
func NewAttributionService(
	profiles repository.ProfileRepository,
	pending *referral.PendingStore,
	flags repository.KeyValueStore,
	push notify.Dispatcher,
	analytics notify.Analytics,
	log *zap.Logger,
	cfg AttributionConfig,
) *AttributionServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.WaitAttempts <= 0 {
		cfg.WaitAttempts = DefaultAttributionConfig.WaitAttempts
	}
	if cfg.WaitInterval <= 0 {
		cfg.WaitInterval = DefaultAttributionConfig.WaitInterval
	}
	return &AttributionServiceImpl{
		profiles:  profiles,
		pending:   pending,
		flags:     flags,
		push:      push,
		analytics: analytics,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Attribute waits for the profile, consumes the pending referrer and attributes it
// in one guarded transaction. Already-handled cases are outcomes, not errors.
func (s *AttributionServiceImpl) Attribute(ctx context.Context, userID, currentURL string) (Outcome, error) {
	log := s.log.With(zap.String("user_id", userID))

	if err := s.waitForProfile(ctx, userID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			log.Info("profile not found, attribution abandoned", zap.Int("attempts", s.cfg.WaitAttempts))
			return OutcomeProfileMissing, nil
		}
		log.Warn("profile wait interrupted", zap.Error(err))
		return OutcomeFailed, err
	}

	// The pending record is consumed before the transaction and never restored:
	// a captured link gets exactly one attribution attempt.
	pending, err := s.pending.ConsumeAndClear(ctx)
	if err != nil {
		log.Warn("pending referrer unreadable", zap.Error(err))
	}
	if pending.IsZero() {
		if link, ok := referral.ParseLink(currentURL); ok {
			pending = model.PendingReferrer{ReferrerID: link.ReferrerID, Src: link.Src, Timestamp: s.now()}
		}
	}
	if pending.IsZero() {
		return OutcomeNone, nil
	}
	log = log.With(zap.String("referrer_id", pending.ReferrerID))

	if pending.ReferrerID == userID {
		log.Info("self referral discarded")
		return OutcomeSelfReferral, nil
	}

	_, err = s.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		if p.HasReferrer() {
			return nil, errs.ErrAlreadyDone
		}
		return &model.ProfileUpdate{
			Referral: &model.Attribution{
				ReferrerID: pending.ReferrerID,
				Src:        pending.Src,
				At:         s.now().UTC(),
			},
			TrophyDelta: model.ReferralActivationBonus,
			Cause:       model.CauseReferralActivation,
		}, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrAlreadyDone), errors.Is(err, errs.ErrConflict):
		log.Info("referrer already attributed")
		return OutcomeAlreadyAttributed, nil
	case errors.Is(err, errs.ErrSelfReferral):
		return OutcomeSelfReferral, nil
	default:
		log.Error("attribution transaction failed", zap.Error(err))
		return OutcomeFailed, err
	}

	log.Info("referral activated", zap.String("src", pending.Src))
	s.afterActivation(ctx, log, userID, pending)
	return OutcomeActivated, nil
}

// afterActivation runs the best-effort side effects; none of them can undo the attribution.
func (s *AttributionServiceImpl) afterActivation(ctx context.Context, log *zap.Logger, userID string, pending model.PendingReferrer) {
	if s.flags != nil {
		if err := s.flags.Set(ctx, ActivationShownKey, "1"); err != nil {
			log.Warn("activation flag not saved", zap.Error(err))
		}
	}
	if s.analytics != nil {
		ev := notify.NewEvent(EventReferralActivated, userID, map[string]string{
			"referrer_id": pending.ReferrerID,
			"src":         pending.Src,
		})
		if err := s.analytics.Log(ctx, ev); err != nil {
			log.Warn("analytics log failed", zap.Error(err))
		}
	}
	if s.push != nil {
		n := notify.NewNotification(pending.ReferrerID, model.KindNewReferral,
			"New referral",
			"Someone joined ChallengeTies with your invite.",
			map[string]string{"child_id": userID, "src": pending.Src},
		)
		if err := s.push.Send(ctx, n); err != nil {
			log.Warn("referrer notification failed", zap.Error(err))
		}
	}
}

func (s *AttributionServiceImpl) waitForProfile(ctx context.Context, userID string) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.WaitAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.WaitInterval):
			}
		}
		_, err := s.profiles.Get(ctx, userID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Debug("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		lastErr = err
	}
	if errors.Is(lastErr, errs.ErrNotFound) || lastErr == nil {
		return errs.ErrNotFound
	}
	return lastErr
}

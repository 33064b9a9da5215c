package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/challengeties/rewards/internal/errs"
)

// Attribution links a profile to its referrer.
type Attribution struct {
	ReferrerID string
	Src        string
	At         time.Time
}

// ProfileUpdate is a guarded mutation computed inside a store transaction.
// Stores apply TrophyDelta as an atomic increment and never as a plain set.
type ProfileUpdate struct {
	Referral *Attribution

	TrophyDelta int64
	Cause       string // required when TrophyDelta > 0

	StageAchievements []string
	ClaimAchievements []string

	AmbassadorMilestones []int
	ClaimedMilestones    []int

	GrantPioneer bool

	AmbassadorPaidFor    *int
	ReferralBonusPaidFor *int
}

// IsZero reports whether the update writes nothing.
func (u *ProfileUpdate) IsZero() bool {
	return u == nil || (u.Referral == nil && u.TrophyDelta == 0 &&
		len(u.StageAchievements) == 0 && len(u.ClaimAchievements) == 0 &&
		len(u.AmbassadorMilestones) == 0 && len(u.ClaimedMilestones) == 0 &&
		!u.GrantPioneer && u.AmbassadorPaidFor == nil && u.ReferralBonusPaidFor == nil)
}

// ErrInvalidUpdate is returned for updates that can never be applied.
var ErrInvalidUpdate = errors.New("invalid profile update")

// ApplyTo returns the profile that results from applying u to p. It enforces the
// one-way rules of the ledger; a violated guard yields errs.ErrConflict and p is untouched.
func (u *ProfileUpdate) ApplyTo(p Profile) (Profile, error) {
	if u.TrophyDelta < 0 {
		return p, fmt.Errorf("%w: negative trophy delta %d", ErrInvalidUpdate, u.TrophyDelta)
	}
	if u.TrophyDelta > 0 && u.Cause == "" {
		return p, fmt.Errorf("%w: trophy credit without cause", ErrInvalidUpdate)
	}

	next := p.Clone()

	if u.Cause != "" {
		if slices.Contains(p.TrophyCauses, u.Cause) {
			return p, fmt.Errorf("cause %q already credited: %w", u.Cause, errs.ErrConflict)
		}
		next.TrophyCauses = append(next.TrophyCauses, u.Cause)
	}

	if r := u.Referral; r != nil {
		if r.ReferrerID == "" {
			return p, fmt.Errorf("%w: empty referrer", ErrInvalidUpdate)
		}
		if r.ReferrerID == p.ID {
			return p, errs.ErrSelfReferral
		}
		if p.HasReferrer() {
			return p, fmt.Errorf("referrer already set: %w", errs.ErrConflict)
		}
		next.ReferrerID = r.ReferrerID
		next.Activated = true
		next.Referral.Src = r.Src
		next.Referral.ActivatedAt = r.At
	}

	if u.GrantPioneer {
		if p.IsPioneer || p.PioneerRewardGranted {
			return p, fmt.Errorf("pioneer already granted: %w", errs.ErrConflict)
		}
		next.IsPioneer = true
		next.PioneerRewardGranted = true
	}

	for _, id := range u.StageAchievements {
		if slices.Contains(next.Achievements, id) || slices.Contains(next.NewAchievements, id) {
			continue
		}
		next.NewAchievements = append(next.NewAchievements, id)
	}

	for _, id := range u.ClaimAchievements {
		i := slices.Index(next.NewAchievements, id)
		if i < 0 {
			return p, fmt.Errorf("achievement %q not staged: %w", id, errs.ErrConflict)
		}
		next.NewAchievements = slices.Delete(next.NewAchievements, i, i+1)
		if !slices.Contains(next.Achievements, id) {
			next.Achievements = append(next.Achievements, id)
		}
	}

	for _, m := range u.AmbassadorMilestones {
		if slices.Contains(next.AmbassadorMilestones, m) {
			return p, fmt.Errorf("ambassador milestone %d already paid: %w", m, errs.ErrConflict)
		}
		next.AmbassadorMilestones = append(next.AmbassadorMilestones, m)
	}

	for _, m := range u.ClaimedMilestones {
		if slices.Contains(next.Referral.ClaimedMilestones, m) {
			return p, fmt.Errorf("referral milestone %d already claimed: %w", m, errs.ErrConflict)
		}
		next.Referral.ClaimedMilestones = append(next.Referral.ClaimedMilestones, m)
	}

	if v := u.AmbassadorPaidFor; v != nil {
		if *v <= p.AmbassadorPaidFor {
			return p, fmt.Errorf("ambassadorPaidFor %d <= %d: %w", *v, p.AmbassadorPaidFor, errs.ErrConflict)
		}
		next.AmbassadorPaidFor = *v
	}

	if v := u.ReferralBonusPaidFor; v != nil {
		if *v <= p.Referral.BonusPaidFor {
			return p, fmt.Errorf("bonusPaidFor %d <= %d: %w", *v, p.Referral.BonusPaidFor, errs.ErrConflict)
		}
		next.Referral.BonusPaidFor = *v
	}

	next.Trophies += u.TrophyDelta
	next.Version = p.Version + 1
	return next, nil
}

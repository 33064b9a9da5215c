package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/challengeties/rewards/internal/errs"
)

func intp(v int) *int { return &v }

func TestApplyTo_Attribution(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Profile{ID: "B", Version: 2}
	u := &ProfileUpdate{
		Referral:    &Attribution{ReferrerID: "A", Src: "qr", At: at},
		TrophyDelta: ReferralActivationBonus,
		Cause:       CauseReferralActivation,
	}

	next, err := u.ApplyTo(p)
	require.NoError(t, err)
	require.Equal(t, "A", next.ReferrerID)
	require.True(t, next.Activated)
	require.Equal(t, at, next.Referral.ActivatedAt)
	require.Equal(t, int64(10), next.Trophies)
	require.Equal(t, int64(3), next.Version)
	require.Empty(t, p.TrophyCauses, "input must not be mutated")

	_, err = u.ApplyTo(next)
	require.ErrorIs(t, err, errs.ErrConflict)

	u2 := &ProfileUpdate{Referral: &Attribution{ReferrerID: "C"}}
	_, err = u2.ApplyTo(next)
	require.ErrorIs(t, err, errs.ErrConflict)

	_, err = (&ProfileUpdate{Referral: &Attribution{ReferrerID: "B"}}).ApplyTo(p)
	require.ErrorIs(t, err, errs.ErrSelfReferral)

	// activated without a referrer id still counts as attributed
	_, err = u2.ApplyTo(Profile{ID: "B", Activated: true})
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestApplyTo_Invalid(t *testing.T) {
	cases := []*ProfileUpdate{
		{TrophyDelta: -5, Cause: "x"},
		{TrophyDelta: 5},
		{Referral: &Attribution{}},
	}
	for _, u := range cases {
		_, err := u.ApplyTo(Profile{ID: "u"})
		require.ErrorIs(t, err, ErrInvalidUpdate)
	}
}

func TestApplyTo_Achievements(t *testing.T) {
	p := Profile{ID: "u", Achievements: []string{"old"}}
	next, err := (&ProfileUpdate{StageAchievements: []string{"old", "new", "new"}}).ApplyTo(p)
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, next.NewAchievements)

	next, err = (&ProfileUpdate{ClaimAchievements: []string{"new"}, TrophyDelta: 5, Cause: CauseAchievement("new")}).ApplyTo(next)
	require.NoError(t, err)
	require.Empty(t, next.NewAchievements)
	require.Equal(t, []string{"old", "new"}, next.Achievements)

	_, err = (&ProfileUpdate{ClaimAchievements: []string{"new"}}).ApplyTo(next)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestApplyTo_Milestones(t *testing.T) {
	p := Profile{ID: "u", AmbassadorMilestones: []int{5}, Referral: ReferralInfo{ClaimedMilestones: []int{5}}}

	_, err := (&ProfileUpdate{AmbassadorMilestones: []int{5}}).ApplyTo(p)
	require.ErrorIs(t, err, errs.ErrConflict)
	_, err = (&ProfileUpdate{ClaimedMilestones: []int{5}}).ApplyTo(p)
	require.ErrorIs(t, err, errs.ErrConflict)

	next, err := (&ProfileUpdate{GrantPioneer: true, TrophyDelta: PioneerReward, Cause: CausePioneer}).ApplyTo(p)
	require.NoError(t, err)
	require.True(t, next.IsPioneer && next.PioneerRewardGranted)
	_, err = (&ProfileUpdate{GrantPioneer: true}).ApplyTo(Profile{PioneerRewardGranted: true})
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestApplyTo_HighWaterMarks(t *testing.T) {
	p := Profile{ID: "u", AmbassadorPaidFor: 4, Referral: ReferralInfo{BonusPaidFor: 2}}

	next, err := (&ProfileUpdate{AmbassadorPaidFor: intp(6), ReferralBonusPaidFor: intp(3)}).ApplyTo(p)
	require.NoError(t, err)
	require.Equal(t, 6, next.AmbassadorPaidFor)
	require.Equal(t, 3, next.Referral.BonusPaidFor)

	_, err = (&ProfileUpdate{AmbassadorPaidFor: intp(4)}).ApplyTo(p)
	require.ErrorIs(t, err, errs.ErrConflict)
	_, err = (&ProfileUpdate{ReferralBonusPaidFor: intp(1)}).ApplyTo(p)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestIsZero(t *testing.T) {
	var u *ProfileUpdate
	require.True(t, u.IsZero())
	require.True(t, (&ProfileUpdate{}).IsZero())
	require.False(t, (&ProfileUpdate{AmbassadorPaidFor: intp(1)}).IsZero())
}

func TestCauses(t *testing.T) {
	require.Equal(t, "ambassador:5+10", CauseAmbassador([]int{5, 10}))
	require.Equal(t, "referral-milestone:25", CauseReferralMilestone(25))
	require.Equal(t, "referrer-bonus:0-3", CauseReferrerBonus(0, 3))
	r, ok := RewardFor(AmbassadorLadder, 25)
	require.True(t, ok)
	require.Equal(t, int64(300), r)
	_, ok = RewardFor(AmbassadorLadder, 7)
	require.False(t, ok)
}

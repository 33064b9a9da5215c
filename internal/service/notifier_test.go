package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/challengeties/rewards/internal/limiter"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/notify"
)

func TestPendingMilestone(t *testing.T) {
	cases := []struct {
		name      string
		activated int
		claimed   []int
		want      int
		ok        bool
	}{
		{"below ladder", 4, nil, 0, false},
		{"first rung", 5, nil, 5, true},
		{"smallest unclaimed wins", 26, nil, 5, true},
		{"skips claimed", 12, []int{5}, 10, true},
		{"all claimed", 30, []int{5, 10, 25}, 0, false},
		{"claimed but next locked", 9, []int{5}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := PendingMilestone(tc.activated, tc.claimed)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, m.Threshold)
		})
	}
}

func TestMilestoneNotifier_NudgesWithoutWriting(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.put(model.Profile{ID: "r", Referral: model.ReferralInfo{ClaimedMilestones: []int{5}}})
	before := e.profile(t, "r")
	n := NewMilestoneNotifier(e.profiles, e.push, nil)

	threshold, sent, err := n.Check(ctx, "r", 12)
	require.NoError(t, err)
	require.True(t, sent)
	require.Equal(t, 10, threshold)

	msgs := e.push.Sent()
	require.Len(t, msgs, 1)
	require.Equal(t, model.KindMilestonePending, msgs[0].Kind)
	require.Equal(t, "10", msgs[0].Data["threshold"])
	require.Equal(t, "100", msgs[0].Data["reward"])

	if diff := cmp.Diff(before, e.profile(t, "r")); diff != "" {
		t.Fatalf("notifier mutated profile (-before +after):\n%s", diff)
	}
}

func TestMilestoneNotifier_NothingToNudge(t *testing.T) {
	e := newEnv(t)
	e.put(model.Profile{ID: "r", Referral: model.ReferralInfo{ClaimedMilestones: []int{5, 10}}})
	n := NewMilestoneNotifier(e.profiles, e.push, nil)

	_, sent, err := n.Check(context.Background(), "r", 12)
	require.NoError(t, err)
	require.False(t, sent)
	require.Empty(t, e.push.Sent())
}

func TestMilestoneNotifier_DispatchFailureLogged(t *testing.T) {
	e := newEnv(t)
	e.push.err = errBoom
	e.put(model.Profile{ID: "r"})
	n := NewMilestoneNotifier(e.profiles, e.push, nil)

	threshold, sent, err := n.Check(context.Background(), "r", 5)
	require.NoError(t, err)
	require.False(t, sent)
	require.Equal(t, 5, threshold)
}

func TestMilestoneClaim(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.put(model.Profile{ID: "r"})
	e.addReferrals("r", 6)
	c := NewMilestoneClaimService(e.profiles, nil)

	_, err := c.Claim(ctx, "r", 7)
	require.ErrorIs(t, err, ErrUnknownMilestone)
	_, err = c.Claim(ctx, "r", 10)
	require.ErrorIs(t, err, ErrMilestoneLocked)

	got, err := c.Claim(ctx, "r", 5)
	require.NoError(t, err)
	require.Equal(t, int64(50), got)

	got, err = c.Claim(ctx, "r", 5)
	require.NoError(t, err)
	require.Zero(t, got)

	p := e.profile(t, "r")
	require.Equal(t, []int{5}, p.Referral.ClaimedMilestones)
	require.Equal(t, int64(50), p.Trophies)

	// the notifier moves on once the rung is claimed
	_, sent, err := NewMilestoneNotifier(e.profiles, e.push, nil).Check(ctx, "r", 6)
	require.NoError(t, err)
	require.False(t, sent)
}

func TestMilestoneNotifier_ThrottledNudgeNotReportedAsSent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.put(model.Profile{ID: "r"})
	n := NewMilestoneNotifier(e.profiles, notify.NewThrottled(e.push, limiter.NewMemory(time.Hour), nil), nil)

	threshold, sent, err := n.Check(ctx, "r", 5)
	require.NoError(t, err)
	require.True(t, sent)
	require.Equal(t, 5, threshold)

	threshold, sent, err = n.Check(ctx, "r", 5)
	require.NoError(t, err)
	require.False(t, sent)
	require.Equal(t, 5, threshold)
	require.Len(t, e.push.Sent(), 1)
}

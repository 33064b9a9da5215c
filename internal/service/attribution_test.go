package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/referral"
)

func TestAttribute_PendingReferrerActivates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.put(model.Profile{ID: "B"})
	e.put(model.Profile{ID: "A"})
	require.NoError(t, e.pending.Store(ctx, "A", "share", time.Now()))

	out, err := e.attr.Attribute(ctx, "B", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, out)

	b := e.profile(t, "B")
	require.Equal(t, "A", b.ReferrerID)
	require.True(t, b.Activated)
	require.Equal(t, "share", b.Referral.Src)
	require.False(t, b.Referral.ActivatedAt.IsZero())
	require.Equal(t, model.ReferralActivationBonus, b.Trophies)
	require.Equal(t, []string{model.CauseReferralActivation}, b.TrophyCauses)

	_, err = e.kv.Get(ctx, referral.PendingKey)
	require.ErrorIs(t, err, errs.ErrNotFound)
	flag, err := e.kv.Get(ctx, ActivationShownKey)
	require.NoError(t, err)
	require.Equal(t, "1", flag)

	sent := e.push.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "A", sent[0].UserID)
	require.Equal(t, model.KindNewReferral, sent[0].Kind)
	require.Equal(t, "B", sent[0].Data["child_id"])
	require.Len(t, e.analytics.events, 1)
	require.Equal(t, EventReferralActivated, e.analytics.events[0].Name)
}

func TestAttribute_SelfReferralDiscarded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.put(model.Profile{ID: "A"})
	require.NoError(t, e.pending.Store(ctx, "A", "share", time.Now()))

	out, err := e.attr.Attribute(ctx, "A", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeSelfReferral, out)

	a := e.profile(t, "A")
	require.False(t, a.HasReferrer())
	require.Zero(t, a.Trophies)
	_, err = e.kv.Get(ctx, referral.PendingKey)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Empty(t, e.push.Sent())
}

func TestAttribute_AlreadyAttributedIsNoop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.put(model.Profile{ID: "B", ReferrerID: "A", Activated: true, Trophies: 10})
	require.NoError(t, e.pending.Store(ctx, "C", "qr", time.Now()))

	out, err := e.attr.Attribute(ctx, "B", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyAttributed, out)

	b := e.profile(t, "B")
	require.Equal(t, "A", b.ReferrerID)
	require.Equal(t, int64(10), b.Trophies)
	// consumed anyway: one attempt per captured link
	_, err = e.kv.Get(ctx, referral.PendingKey)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Empty(t, e.push.Sent())
}

func TestAttribute_FallsBackToCurrentURL(t *testing.T) {
	e := newEnv(t)
	e.put(model.Profile{ID: "B"})

	out, err := e.attr.Attribute(context.Background(), "B", "https://challengeties.app/join?ref=A&src=qr")
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, out)
	require.Equal(t, "qr", e.profile(t, "B").Referral.Src)
}

func TestAttribute_NothingPending(t *testing.T) {
	e := newEnv(t)
	e.put(model.Profile{ID: "B"})

	out, err := e.attr.Attribute(context.Background(), "B", "https://challengeties.app/challenges/7")
	require.NoError(t, err)
	require.Equal(t, OutcomeNone, out)
	require.Zero(t, e.profile(t, "B").Trophies)
}

func TestAttribute_ProfileNeverAppears(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.pending.Store(ctx, "A", "share", time.Now()))

	out, err := e.attr.Attribute(ctx, "B", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeProfileMissing, out)

	// the referral survives for the next login
	_, err = e.kv.Get(ctx, referral.PendingKey)
	require.NoError(t, err)
}

func TestAttribute_ContextCancelledWhileWaiting(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := e.attr.Attribute(ctx, "ghost", "")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, OutcomeFailed, out)
}

func TestAttribute_StoreFailureReported(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.put(model.Profile{ID: "B"})
	require.NoError(t, e.pending.Store(ctx, "A", "share", time.Now()))
	svc := NewAttributionService(&flakyProfiles{ProfileRepository: e.profiles, updateErr: errBoom},
		e.pending, e.kv, e.push, e.analytics, nil, AttributionConfig{WaitAttempts: 1, WaitInterval: time.Millisecond})

	out, err := svc.Attribute(ctx, "B", "")
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, OutcomeFailed, out)
	require.Empty(t, e.push.Sent())
}

func TestAttribute_NotificationFailureDoesNotUndo(t *testing.T) {
	e := newEnv(t)
	e.push.err = errBoom
	e.put(model.Profile{ID: "B"})

	out, err := e.attr.Attribute(context.Background(), "B", "https://x.app/?ref=A")
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, out)
	require.True(t, e.profile(t, "B").Activated)
}

func TestAttribute_ConcurrentLoginsCreditOnce(t *testing.T) {
	e := newEnv(t)
	e.put(model.Profile{ID: "B"})

	const n = 16
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := e.attr.Attribute(context.Background(), "B", "https://x.app/?ref=A&src=share")
			require.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	activated := 0
	for _, o := range outcomes {
		if o == OutcomeActivated {
			activated++
		} else {
			require.Equal(t, OutcomeAlreadyAttributed, o)
		}
	}
	require.Equal(t, 1, activated)
	require.Equal(t, model.ReferralActivationBonus, e.profile(t, "B").Trophies)
	require.Len(t, e.push.Sent(), 1)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "activated", OutcomeActivated.String())
	require.Equal(t, "profile-missing", OutcomeProfileMissing.String())
	require.Equal(t, "unknown", Outcome(99).String())
}

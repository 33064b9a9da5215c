package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/notify"
	"github.com/challengeties/rewards/internal/repository"
)

// MilestoneNotifier nudges a user about the smallest unlocked, unclaimed referral
// milestone. It never writes to the profile.
type MilestoneNotifier struct {
	profiles repository.ProfileRepository
	push     notify.Dispatcher
	log      *zap.Logger
}

func NewMilestoneNotifier(profiles repository.ProfileRepository, push notify.Dispatcher, log *zap.Logger) *MilestoneNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &MilestoneNotifier{profiles: profiles, push: push, log: log}
}

// PendingMilestone returns the smallest threshold reached by activated and not in claimed.
func PendingMilestone(activated int, claimed []int) (model.Milestone, bool) {
	for _, m := range model.ReferralMilestoneLadder {
		if activated >= m.Threshold && !slices.Contains(claimed, m.Threshold) {
			return m, true
		}
	}
	return model.Milestone{}, false
}

// Check sends at most one nudge and returns the threshold it was about.
func (n *MilestoneNotifier) Check(ctx context.Context, userID string, activated int) (int, bool, error) {
	p, err := n.profiles.Get(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	m, ok := PendingMilestone(activated, p.Referral.ClaimedMilestones)
	if !ok {
		return 0, false, nil
	}
	if n.push == nil {
		return m.Threshold, false, nil
	}
	msg := notify.NewNotification(userID, model.KindMilestonePending,
		"Referral reward waiting",
		fmt.Sprintf("You reached %d referrals. Claim your %d trophies!", m.Threshold, m.Reward),
		map[string]string{
			"threshold": strconv.Itoa(m.Threshold),
			"reward":    strconv.FormatInt(m.Reward, 10),
		},
	)
	if err := n.push.Send(ctx, msg); err != nil {
		if errors.Is(err, notify.ErrThrottled) {
			return m.Threshold, false, nil
		}
		n.log.Warn("milestone nudge failed",
			zap.String("user_id", userID), zap.Int("threshold", m.Threshold), zap.Error(err))
		return m.Threshold, false, nil
	}
	return m.Threshold, true, nil
}

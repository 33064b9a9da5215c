package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository"
)

var (
	// ErrUnknownMilestone is returned for a threshold that is not on the ladder.
	ErrUnknownMilestone = errors.New("milestone: unknown threshold")
	// ErrMilestoneLocked is returned when the user has not reached the threshold yet.
	ErrMilestoneLocked = errors.New("milestone: not unlocked")
)

// MilestoneClaimService is the explicit user claim of a referral milestone.
type MilestoneClaimService struct {
	profiles repository.ProfileRepository
	log      *zap.Logger
}

func NewMilestoneClaimService(profiles repository.ProfileRepository, log *zap.Logger) *MilestoneClaimService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MilestoneClaimService{profiles: profiles, log: log}
}

// Claim credits the ladder reward of threshold once. A repeated claim returns (0, nil).
func (s *MilestoneClaimService) Claim(ctx context.Context, userID string, threshold int) (int64, error) {
	reward, ok := model.RewardFor(model.ReferralMilestoneLadder, threshold)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMilestone, threshold)
	}
	activated, err := s.profiles.CountActivatedReferrals(ctx, userID)
	if err != nil {
		return 0, err
	}
	if activated < threshold {
		return 0, fmt.Errorf("%w: %d of %d referrals", ErrMilestoneLocked, activated, threshold)
	}
	claimed, err := s.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		if slices.Contains(p.Referral.ClaimedMilestones, threshold) {
			return nil, nil
		}
		return &model.ProfileUpdate{
			ClaimedMilestones: []int{threshold},
			TrophyDelta:       reward,
			Cause:             model.CauseReferralMilestone(threshold),
		}, nil
	})
	claimed, err = settle(claimed, err)
	if err != nil || !claimed {
		return 0, err
	}
	s.log.Info("referral milestone claimed",
		zap.String("user_id", userID), zap.Int("threshold", threshold), zap.Int64("trophies", reward))
	return reward, nil
}

package service

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository"
)

// MilestoneService pays the referrer-side rewards. Every method takes the
// activated referral count computed by the caller and is safe to repeat.
type MilestoneService interface {
	GrantPioneer(ctx context.Context, userID string, activated int) (bool, error)
	GrantAmbassadorMilestones(ctx context.Context, userID string, activated int) ([]int, error)
	SyncAmbassadorPaidFor(ctx context.Context, userID string, activated int) (bool, error)
	PayReferrerBonuses(ctx context.Context, userID string, activated int) (int64, error)
}

type MilestoneServiceImpl struct {
	profiles repository.ProfileRepository
	log      *zap.Logger
}

// NewMilestoneService constructs the engine.
func NewMilestoneService(profiles repository.ProfileRepository, log *zap.Logger) *MilestoneServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &MilestoneServiceImpl{profiles: profiles, log: log}
}

// GrantPioneer pays the one-shot pioneer reward once the user has enough activated referrals.
func (s *MilestoneServiceImpl) GrantPioneer(ctx context.Context, userID string, activated int) (bool, error) {
	if activated < model.PioneerThreshold {
		return false, nil
	}
	granted, err := s.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		if p.IsPioneer || p.PioneerRewardGranted {
			return nil, nil
		}
		return &model.ProfileUpdate{
			GrantPioneer: true,
			TrophyDelta:  model.PioneerReward,
			Cause:        model.CausePioneer,
		}, nil
	})
	granted, err = settle(granted, err)
	if err != nil {
		return false, err
	}
	if granted {
		s.log.Info("pioneer granted", zap.String("user_id", userID), zap.Int("activated", activated))
	}
	return granted, nil
}

// GrantAmbassadorMilestones pays every newly crossed ambassador threshold in one write
// and returns the thresholds paid.
func (s *MilestoneServiceImpl) GrantAmbassadorMilestones(ctx context.Context, userID string, activated int) ([]int, error) {
	if activated < model.AmbassadorLadder[0].Threshold {
		return nil, nil
	}
	var crossed []int
	applied, err := s.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		// fn may run more than once; only the last snapshot counts.
		crossed = crossed[:0]
		var sum int64
		for _, m := range model.AmbassadorLadder {
			if activated >= m.Threshold && !slices.Contains(p.AmbassadorMilestones, m.Threshold) {
				crossed = append(crossed, m.Threshold)
				sum += m.Reward
			}
		}
		if len(crossed) == 0 {
			return nil, nil
		}
		return &model.ProfileUpdate{
			AmbassadorMilestones: slices.Clone(crossed),
			TrophyDelta:          sum,
			Cause:                model.CauseAmbassador(crossed),
		}, nil
	})
	applied, err = settle(applied, err)
	if err != nil || !applied {
		return nil, err
	}
	s.log.Info("ambassador milestones paid",
		zap.String("user_id", userID), zap.Ints("thresholds", crossed), zap.Int("activated", activated))
	return crossed, nil
}

// SyncAmbassadorPaidFor raises the ambassadorPaidFor bookkeeping mark. No trophies move.
func (s *MilestoneServiceImpl) SyncAmbassadorPaidFor(ctx context.Context, userID string, activated int) (bool, error) {
	synced, err := s.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		if activated <= p.AmbassadorPaidFor {
			return nil, nil
		}
		mark := activated
		return &model.ProfileUpdate{AmbassadorPaidFor: &mark}, nil
	})
	return settle(synced, err)
}

// PayReferrerBonuses credits the referrer for activations observed since the last payout
// and returns the amount credited.
func (s *MilestoneServiceImpl) PayReferrerBonuses(ctx context.Context, userID string, activated int) (int64, error) {
	var amount int64
	applied, err := s.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		amount = 0
		paid := p.Referral.BonusPaidFor
		if activated <= paid {
			return nil, nil
		}
		mark := activated
		amount = int64(activated-paid) * model.ReferrerActivationBonus
		return &model.ProfileUpdate{
			ReferralBonusPaidFor: &mark,
			TrophyDelta:          amount,
			Cause:                model.CauseReferrerBonus(paid, activated),
		}, nil
	})
	applied, err = settle(applied, err)
	if err != nil || !applied {
		return 0, err
	}
	s.log.Info("referrer bonus paid",
		zap.String("user_id", userID), zap.Int64("trophies", amount), zap.Int("activated", activated))
	return amount, nil
}

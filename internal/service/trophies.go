package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository"
)

// TrophyLedger stages achievements and credits them once on claim.
type TrophyLedger interface {
	// AddAchievement stages id unless it is already staged or claimed.
	AddAchievement(ctx context.Context, userID, id string) (bool, error)
	// ClaimAchievement moves a staged id to claimed and credits trophies in one write.
	ClaimAchievement(ctx context.Context, userID, id string, trophies int64) (bool, error)
}

type TrophyLedgerImpl struct {
	profiles repository.ProfileRepository
	log      *zap.Logger
}

// NewTrophyLedger constructs the ledger.
func NewTrophyLedger(profiles repository.ProfileRepository, log *zap.Logger) *TrophyLedgerImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrophyLedgerImpl{profiles: profiles, log: log}
}

// AddAchievement stages an unlocked achievement without crediting it.
func (l *TrophyLedgerImpl) AddAchievement(ctx context.Context, userID, id string) (bool, error) {
	if userID == "" || id == "" {
		return false, errors.New("validation: empty userID/achievement id")
	}
	staged, err := l.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		if slices.Contains(p.Achievements, id) || slices.Contains(p.NewAchievements, id) {
			return nil, nil
		}
		return &model.ProfileUpdate{StageAchievements: []string{id}}, nil
	})
	return settle(staged, err)
}

// ClaimAchievement credits trophies for a staged achievement. A second claim finds
// nothing staged and is a no-op.
func (l *TrophyLedgerImpl) ClaimAchievement(ctx context.Context, userID, id string, trophies int64) (bool, error) {
	if userID == "" || id == "" {
		return false, errors.New("validation: empty userID/achievement id")
	}
	if trophies < 0 {
		return false, fmt.Errorf("validation: negative trophies %d", trophies)
	}
	claimed, err := l.profiles.Update(ctx, userID, func(p model.Profile) (*model.ProfileUpdate, error) {
		if !slices.Contains(p.NewAchievements, id) {
			return nil, nil
		}
		return &model.ProfileUpdate{
			ClaimAchievements: []string{id},
			TrophyDelta:       trophies,
			Cause:             model.CauseAchievement(id),
		}, nil
	})
	claimed, err = settle(claimed, err)
	if err != nil {
		l.log.Error("achievement claim failed",
			zap.String("user_id", userID), zap.String("achievement", id), zap.Error(err))
		return false, err
	}
	if claimed {
		l.log.Info("achievement claimed",
			zap.String("user_id", userID), zap.String("achievement", id), zap.Int64("trophies", trophies))
	}
	return claimed, nil
}

// settle maps "lost the race" and "already done" onto a plain no-op.
func settle(applied bool, err error) (bool, error) {
	if errors.Is(err, errs.ErrConflict) || errors.Is(err, errs.ErrAlreadyDone) {
		return false, nil
	}
	return applied, err
}

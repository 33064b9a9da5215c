package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ClaimState is the state of a ClaimSession.
type ClaimState int

const (
	ClaimIdle ClaimState = iota
	ClaimStaged
)

var (
	// ErrClaimBusy is returned when staging while another reward is staged.
	ErrClaimBusy = errors.New("claim: reward already staged")
	// ErrNothingStaged is returned when doubling or claiming from idle.
	ErrNothingStaged = errors.New("claim: nothing staged")
)

// ClaimSnapshot is a read-only view of a session.
type ClaimSnapshot struct {
	State         ClaimState
	AchievementID string
	Trophies      int64
	Doubled       bool
}

// ClaimSession holds one staged reward between the unlock screen and the claim
// button: idle -> staged -> (doubled) -> claimed -> idle.
type ClaimSession struct {
	ledger TrophyLedger
	log    *zap.Logger

	mu            sync.Mutex
	state         ClaimState
	achievementID string
	trophies      int64
	doubled       bool
}

// NewClaimSession constructs an idle session.
func NewClaimSession(ledger TrophyLedger, log *zap.Logger) *ClaimSession {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClaimSession{ledger: ledger, log: log}
}

// Stage records the reward to be claimed.
func (s *ClaimSession) Stage(achievementID string, trophies int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ClaimIdle {
		return ErrClaimBusy
	}
	if achievementID == "" || trophies < 0 {
		return errors.New("claim: invalid reward")
	}
	s.state, s.achievementID, s.trophies, s.doubled = ClaimStaged, achievementID, trophies, false
	return nil
}

// Double marks the staged reward as doubled. Doubling twice has no further effect.
func (s *ClaimSession) Double() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ClaimStaged {
		return ErrNothingStaged
	}
	s.doubled = true
	return nil
}

// Claim credits the staged reward, doubled if requested, and resets the session
// whatever the outcome. It returns the amount actually credited.
func (s *ClaimSession) Claim(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	if s.state != ClaimStaged {
		s.mu.Unlock()
		return 0, ErrNothingStaged
	}
	id, amount := s.achievementID, s.trophies
	if s.doubled {
		amount *= 2
	}
	s.reset()
	s.mu.Unlock()

	ok, err := s.ledger.ClaimAchievement(ctx, userID, id, amount)
	if err != nil {
		s.log.Warn("claim failed, session reset",
			zap.String("user_id", userID), zap.String("achievement", id), zap.Error(err))
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return amount, nil
}

// Snapshot returns the current state.
func (s *ClaimSession) Snapshot() ClaimSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ClaimSnapshot{State: s.state, AchievementID: s.achievementID, Trophies: s.trophies, Doubled: s.doubled}
}

func (s *ClaimSession) reset() {
	s.state, s.achievementID, s.trophies, s.doubled = ClaimIdle, "", 0, false
}

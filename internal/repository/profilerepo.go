// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/challengeties/rewards/internal/model"
)

// UpdateFunc computes a guarded mutation from the current profile snapshot.
// Returning a nil (or zero) update means no write.
type UpdateFunc func(p model.Profile) (*model.ProfileUpdate, error)

// ProfileRepository is a transactional document store of user profiles.
type ProfileRepository interface {
	// Create inserts an empty profile; creating an existing profile is a no-op.
	Create(ctx context.Context, id string) error

	// Get loads a profile by ID.
	Get(ctx context.Context, id string) (*model.Profile, error)

	// Update runs fn against the current profile and applies its result as one atomic unit.
	// It reports whether a write happened. Guard violations surface as errs.ErrConflict.
	Update(ctx context.Context, id string, fn UpdateFunc) (bool, error)

	// CountActivatedReferrals counts activated profiles whose referrer is referrerID.
	CountActivatedReferrals(ctx context.Context, referrerID string) (int, error)

	// ListReferrers returns the distinct referrers with at least one activated referral.
	ListReferrers(ctx context.Context) ([]string, error)
}

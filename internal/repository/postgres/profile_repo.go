package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository"
)

const profileCols = `id, referrer_id, activated, referral_src, referral_at, activated_count,
claimed_milestones, bonus_paid_for, ambassador_milestones, ambassador_paid_for,
is_pioneer, pioneer_reward_granted, trophies, achievements, new_achievements, trophy_causes, version`

// ProfileRepo implements ProfileRepository using PostgreSQL row locks.
type ProfileRepo struct{ db *DB }

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Create inserts an empty profile row; an existing row is left as is.
func (r *ProfileRepo) Create(ctx context.Context, id string) error {
	const q = `INSERT INTO profiles (id) VALUES ($1)`
	_, err := r.db.Pool.Exec(ctx, q, id)
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

// Get selects a profile by ID.
func (r *ProfileRepo) Get(ctx context.Context, id string) (*model.Profile, error) {
	const q = `SELECT ` + profileCols + ` FROM profiles WHERE id=$1`
	p, err := scanProfile(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update locks the row, computes the mutation and writes it in the same transaction.
// Trophies are written as an increment relative to the stored value.
func (r *ProfileRepo) Update(ctx context.Context, id string, fn repository.UpdateFunc) (bool, error) {
	const sel = `SELECT ` + profileCols + ` FROM profiles WHERE id=$1 FOR UPDATE`
	const upd = `
UPDATE profiles SET
  referrer_id=$2, activated=$3, referral_src=$4, referral_at=$5,
  claimed_milestones=$6, bonus_paid_for=$7,
  ambassador_milestones=$8, ambassador_paid_for=$9,
  is_pioneer=$10, pioneer_reward_granted=$11,
  achievements=$12, new_achievements=$13, trophy_causes=$14,
  trophies=trophies+$15, version=version+1, updated_at=now()
WHERE id=$1`

	applied := false
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanProfile(tx.QueryRow(ctx, sel, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		u, err := fn(*cur)
		if err != nil {
			return err
		}
		if u.IsZero() {
			return nil
		}
		next, err := u.ApplyTo(*cur)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upd,
			id, next.ReferrerID, next.Activated, next.Referral.Src, next.Referral.ActivatedAt,
			toInt64s(next.Referral.ClaimedMilestones), next.Referral.BonusPaidFor,
			toInt64s(next.AmbassadorMilestones), next.AmbassadorPaidFor,
			next.IsPioneer, next.PioneerRewardGranted,
			next.Achievements, next.NewAchievements, next.TrophyCauses,
			u.TrophyDelta,
		); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// CountActivatedReferrals counts activated profiles attributed to referrerID.
func (r *ProfileRepo) CountActivatedReferrals(ctx context.Context, referrerID string) (int, error) {
	const q = `SELECT count(*) FROM profiles WHERE referrer_id=$1 AND activated`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, referrerID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListReferrers returns distinct referrers of activated profiles.
func (r *ProfileRepo) ListReferrers(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT referrer_id FROM profiles WHERE referrer_id <> '' AND activated ORDER BY referrer_id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p                   model.Profile
		at                  time.Time
		claimed, ambassador []int64
	)
	if err := row.Scan(
		&p.ID, &p.ReferrerID, &p.Activated, &p.Referral.Src, &at, &p.Referral.ActivatedCount,
		&claimed, &p.Referral.BonusPaidFor, &ambassador, &p.AmbassadorPaidFor,
		&p.IsPioneer, &p.PioneerRewardGranted, &p.Trophies,
		&p.Achievements, &p.NewAchievements, &p.TrophyCauses, &p.Version,
	); err != nil {
		return nil, err
	}
	p.Referral.ActivatedAt = at
	p.Referral.ClaimedMilestones = toInts(claimed)
	p.AmbassadorMilestones = toInts(ambassador)
	p.Normalize()
	return &p, nil
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

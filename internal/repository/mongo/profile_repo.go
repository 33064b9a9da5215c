// Package mongo implements ProfileRepository on a MongoDB collection.
//
// Every mutation is a single-document update filtered on the version read by the
// caller, so a concurrent writer makes the update miss and the read-modify-write is
// retried from a fresh snapshot.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository"
)

// DefaultRetries bounds the optimistic retry loop of Update.
const DefaultRetries = 5

// ProfileRepo stores profiles as documents keyed by user id.
type ProfileRepo struct {
	coll    *mongo.Collection
	retries int
}

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

// NewProfileRepo wraps a collection. retries <= 0 selects DefaultRetries.
func NewProfileRepo(coll *mongo.Collection, retries int) *ProfileRepo {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &ProfileRepo{coll: coll, retries: retries}
}

// Connect dials the server, pings it and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Create inserts an empty profile document; duplicates are ignored.
func (r *ProfileRepo) Create(ctx context.Context, id string) error {
	p := model.Profile{ID: id}
	p.Normalize()
	_, err := r.coll.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// Get loads a profile by id.
func (r *ProfileRepo) Get(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// Update performs the guarded read-modify-write, retrying when the version moved.
func (r *ProfileRepo) Update(ctx context.Context, id string, fn repository.UpdateFunc) (bool, error) {
	for attempt := 0; attempt < r.retries; attempt++ {
		cur, err := r.Get(ctx, id)
		if err != nil {
			return false, err
		}
		u, err := fn(cur.Clone())
		if err != nil {
			return false, err
		}
		if u.IsZero() {
			return false, nil
		}
		next, err := u.ApplyTo(*cur)
		if err != nil {
			return false, err
		}

		res, err := r.coll.UpdateOne(ctx, versionFilter(id, cur.Version), bson.M{
			"$set": bson.M{
				"referrerId":                 next.ReferrerID,
				"activated":                  next.Activated,
				"referral.src":               next.Referral.Src,
				"referral.activatedAt":       next.Referral.ActivatedAt,
				"referral.claimedMilestones": next.Referral.ClaimedMilestones,
				"referral.bonusPaidFor":      next.Referral.BonusPaidFor,
				"ambassadorMilestones":       next.AmbassadorMilestones,
				"ambassadorPaidFor":          next.AmbassadorPaidFor,
				"isPioneer":                  next.IsPioneer,
				"pioneerRewardGranted":       next.PioneerRewardGranted,
				"achievements":               next.Achievements,
				"newAchievements":            next.NewAchievements,
				"trophyCauses":               next.TrophyCauses,
				"updatedAt":                  time.Now().UTC(),
			},
			"$inc": bson.M{"trophies": u.TrophyDelta, "version": 1},
		})
		if err != nil {
			return false, err
		}
		if res.MatchedCount == 1 {
			return true, nil
		}
	}
	return false, fmt.Errorf("profile %s: %d attempts: %w", id, r.retries, errs.ErrConflict)
}

// versionFilter matches the document only while it still has the version that was read.
// Documents written by other tools may lack the field entirely.
func versionFilter(id string, version int64) bson.M {
	if version == 0 {
		return bson.M{"_id": id, "$or": bson.A{
			bson.M{"version": 0},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"_id": id, "version": version}
}

// CountActivatedReferrals counts activated documents referencing referrerID.
func (r *ProfileRepo) CountActivatedReferrals(ctx context.Context, referrerID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"referrerId": referrerID, "activated": true})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListReferrers returns the distinct referrers of activated profiles.
func (r *ProfileRepo) ListReferrers(ctx context.Context) ([]string, error) {
	vals, err := r.coll.Distinct(ctx, "referrerId", bson.M{
		"activated":  true,
		"referrerId": bson.M{"$nin": bson.A{"", nil}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out, nil
}

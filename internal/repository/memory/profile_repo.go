// Package memory contains in-process implementations of repository interfaces,
// used for dry runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository"
)

// ProfileRepo keeps profiles in a map guarded by a mutex; Update is serialized.
type ProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
}

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

// NewProfileRepo constructs an empty repository.
func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{profiles: map[string]model.Profile{}}
}

// Create adds an empty profile unless it exists.
func (r *ProfileRepo) Create(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; ok {
		return nil
	}
	p := model.Profile{ID: id}
	p.Normalize()
	r.profiles[id] = p
	return nil
}

// Put stores a profile as is, replacing any existing one.
func (r *ProfileRepo) Put(p model.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p.Clone()
}

// Get returns a copy of the profile.
func (r *ProfileRepo) Get(_ context.Context, id string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := p.Clone()
	return &c, nil
}

// Update applies fn under the repository lock.
func (r *ProfileRepo) Update(_ context.Context, id string, fn repository.UpdateFunc) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.profiles[id]
	if !ok {
		return false, errs.ErrNotFound
	}
	u, err := fn(cur.Clone())
	if err != nil {
		return false, err
	}
	if u.IsZero() {
		return false, nil
	}
	next, err := u.ApplyTo(cur)
	if err != nil {
		return false, err
	}
	r.profiles[id] = next
	return true, nil
}

// CountActivatedReferrals scans all profiles.
func (r *ProfileRepo) CountActivatedReferrals(_ context.Context, referrerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.profiles {
		if p.Activated && p.ReferrerID == referrerID {
			n++
		}
	}
	return n, nil
}

// ListReferrers returns sorted distinct referrers.
func (r *ProfileRepo) ListReferrers(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.profiles {
		if p.Activated && p.ReferrerID != "" && !slices.Contains(out, p.ReferrerID) {
			out = append(out, p.ReferrerID)
		}
	}
	slices.Sort(out)
	return out, nil
}

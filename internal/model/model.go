// Package model defines domain entities used by services and repositories.
package model

import (
	"slices"
	"time"
)

// Profile is the per-user profile document. Reads from every store decode into this
// type with explicit zero values for missing fields.
type Profile struct {
	ID                   string       `bson:"_id" json:"id"`
	ReferrerID           string       `bson:"referrerId,omitempty" json:"referrerId,omitempty"` // set at most once
	Activated            bool         `bson:"activated" json:"activated"`
	Referral             ReferralInfo `bson:"referral" json:"referral"`
	AmbassadorMilestones []int        `bson:"ambassadorMilestones" json:"ambassadorMilestones"` // paid thresholds
	AmbassadorPaidFor    int          `bson:"ambassadorPaidFor" json:"ambassadorPaidFor"`       // bookkeeping high-water mark
	IsPioneer            bool         `bson:"isPioneer" json:"isPioneer"`
	PioneerRewardGranted bool         `bson:"pioneerRewardGranted" json:"pioneerRewardGranted"`
	Trophies             int64        `bson:"trophies" json:"trophies"`
	Achievements         []string     `bson:"achievements" json:"achievements"`       // claimed
	NewAchievements      []string     `bson:"newAchievements" json:"newAchievements"` // staged, not yet credited
	TrophyCauses         []string     `bson:"trophyCauses" json:"trophyCauses"`       // audit trail of credits
	Version              int64        `bson:"version" json:"version"`
}

// ReferralInfo groups the referral.* fields of a profile.
type ReferralInfo struct {
	Src         string    `bson:"src,omitempty" json:"src,omitempty"`
	ActivatedAt time.Time `bson:"activatedAt,omitempty" json:"activatedAt,omitempty"`
	// ActivatedCount is maintained by an external aggregation and never written here.
	// It is display data only: rewards always use CountActivatedReferrals, which wins
	// when the two disagree.
	ActivatedCount    int   `bson:"activatedCount" json:"activatedCount"`
	ClaimedMilestones []int `bson:"claimedMilestones" json:"claimedMilestones"` // notified/claimed thresholds
	BonusPaidFor      int   `bson:"bonusPaidFor" json:"bonusPaidFor"`           // referrer bonus high-water mark
}

// Normalize replaces nil sets with empty ones so callers never branch on nil.
func (p *Profile) Normalize() {
	if p.AmbassadorMilestones == nil {
		p.AmbassadorMilestones = []int{}
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	if p.NewAchievements == nil {
		p.NewAchievements = []string{}
	}
	if p.TrophyCauses == nil {
		p.TrophyCauses = []string{}
	}
	if p.Referral.ClaimedMilestones == nil {
		p.Referral.ClaimedMilestones = []int{}
	}
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	c := p
	c.AmbassadorMilestones = slices.Clone(p.AmbassadorMilestones)
	c.Achievements = slices.Clone(p.Achievements)
	c.NewAchievements = slices.Clone(p.NewAchievements)
	c.TrophyCauses = slices.Clone(p.TrophyCauses)
	c.Referral.ClaimedMilestones = slices.Clone(p.Referral.ClaimedMilestones)
	c.Normalize()
	return c
}

// HasReferrer reports whether the profile is already attributed.
func (p Profile) HasReferrer() bool { return p.ReferrerID != "" || p.Activated }

// PendingReferrer is a referral signal captured before authentication.
type PendingReferrer struct {
	ReferrerID string
	Src        string
	Timestamp  time.Time
}

// IsZero reports whether nothing is pending.
func (p PendingReferrer) IsZero() bool { return p.ReferrerID == "" }

// ReferralLink is the referral signal extracted from an inbound URL.
type ReferralLink struct {
	ReferrerID string
	Src        string
}

// Notification is a push payload addressed to a single user.
type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Body      string
	Data      map[string]string
	CreatedAt time.Time
}

// Notification kinds.
const (
	KindNewReferral      = "referral_new_child"
	KindMilestonePending = "referral_milestone_pending"
)

// Event is an analytics event.
type Event struct {
	ID     string
	Name   string
	UserID string
	Props  map[string]string
	At     time.Time
}

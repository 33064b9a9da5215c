package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed reward data.
const (
	// ReferralActivationBonus is credited to a newly attributed user.
	ReferralActivationBonus int64 = 10
	// ReferrerActivationBonus is credited to the referrer per activated referral.
	ReferrerActivationBonus int64 = 10

	PioneerThreshold       = 3
	PioneerReward    int64 = 50
)

// Milestone is one rung of a threshold ladder.
type Milestone struct {
	Threshold int
	Reward    int64
}

// AmbassadorLadder pays trophies once per crossed threshold.
var AmbassadorLadder = []Milestone{
	{Threshold: 5, Reward: 50},
	{Threshold: 10, Reward: 100},
	{Threshold: 25, Reward: 300},
}

// ReferralMilestoneLadder drives the claim nudges.
var ReferralMilestoneLadder = []Milestone{
	{Threshold: 5, Reward: 50},
	{Threshold: 10, Reward: 100},
	{Threshold: 25, Reward: 300},
}

// RewardFor looks up the reward of a threshold in a ladder.
func RewardFor(ladder []Milestone, threshold int) (int64, bool) {
	for _, m := range ladder {
		if m.Threshold == threshold {
			return m.Reward, true
		}
	}
	return 0, false
}

// Trophy credit causes. Every increment carries exactly one.
const (
	CauseReferralActivation = "referral-activation"
	CausePioneer            = "pioneer"
)

// CauseAchievement is the cause for claiming an achievement.
func CauseAchievement(id string) string { return "achievement:" + id }

// CauseAmbassador is the cause for a batch of ambassador thresholds.
func CauseAmbassador(thresholds []int) string {
	parts := make([]string, len(thresholds))
	for i, t := range thresholds {
		parts[i] = strconv.Itoa(t)
	}
	return "ambassador:" + strings.Join(parts, "+")
}

// CauseReferralMilestone is the cause for a claimed referral milestone.
func CauseReferralMilestone(threshold int) string {
	return fmt.Sprintf("referral-milestone:%d", threshold)
}

// CauseReferrerBonus is the cause for referrer bonuses covering (from, to].
func CauseReferrerBonus(from, to int) string {
	return fmt.Sprintf("referrer-bonus:%d-%d", from, to)
}

package referral

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/challengeties/rewards/internal/model"
)

func TestParseLink(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want model.ReferralLink
		ok   bool
	}{
		{"new scheme", "https://challengeties.app/join?ref=R1&src=share", model.ReferralLink{ReferrerID: "R1", Src: "share"}, true},
		{"new keys win over legacy", "https://x.app/?referrerId=OLD&ref=NEW&source=qr", model.ReferralLink{ReferrerID: "NEW", Src: "qr"}, true},
		{"legacy scheme", "challengeties://open?referrerId=R2&source=qr", model.ReferralLink{ReferrerID: "R2", Src: "qr"}, true},
		{"utm fallback", "https://x.app/?ref=R3&utm_source=instagram", model.ReferralLink{ReferrerID: "R3", Src: "instagram"}, true},
		{"default source", "https://x.app/?ref=R4", model.ReferralLink{ReferrerID: "R4", Src: DefaultSource}, true},
		{"universal path", "https://challengeties.app/invite/R5", model.ReferralLink{ReferrerID: "R5", Src: DefaultSource}, true},
		{"custom scheme path", "challengeties://r/R6?src=duo", model.ReferralLink{ReferrerID: "R6", Src: "duo"}, true},
		{"trimmed", "  https://x.app/?ref=%20R7%20  ", model.ReferralLink{ReferrerID: "R7", Src: DefaultSource}, true},
		{"empty", "", model.ReferralLink{}, false},
		{"no signal", "https://challengeties.app/challenges/42", model.ReferralLink{}, false},
		{"partial key", "https://x.app/?ref=", model.ReferralLink{}, false},
		{"dangling path", "https://x.app/invite/", model.ReferralLink{}, false},
		{"nested invite path", "https://challengeties.app/challenge/abc/invite/xyz", model.ReferralLink{}, false},
		{"custom scheme nested r", "challengeties://duo/r/settings", model.ReferralLink{}, false},
		{"invite with trailing segment", "https://challengeties.app/invite/R8/accept", model.ReferralLink{}, false},
		{"duo invite screen", "challengeties://duo/invite/P1", model.ReferralLink{}, false},
		{"bad id chars", "https://x.app/?ref=a%2Fb", model.ReferralLink{}, false},
		{"malformed", "://%zz", model.ReferralLink{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseLink(tc.raw)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

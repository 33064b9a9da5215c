// Package referral captures referral signals from inbound links and keeps them
// durably until the user authenticates.
package referral

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/challengeties/rewards/internal/model"
)

// Query keys, newest scheme first.
var (
	referrerKeys = []string{"ref", "referrerId"}
	sourceKeys   = []string{"src", "source", "utm_source"}
	pathPrefixes = []string{"r", "invite"}
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// DefaultSource tags links that carry a referrer but no source.
const DefaultSource = "link"

// ParseLink extracts a referral from a deep link or universal link.
// It never fails: anything unusable yields ok=false.
func ParseLink(raw string) (model.ReferralLink, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.ReferralLink{}, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.ReferralLink{}, false
	}
	q := u.Query()

	id := firstValue(q, referrerKeys)
	if id == "" {
		id = fromPath(u)
	}
	if !idPattern.MatchString(id) {
		return model.ReferralLink{}, false
	}

	src := firstValue(q, sourceKeys)
	if src == "" {
		src = DefaultSource
	}
	return model.ReferralLink{ReferrerID: id, Src: src}, true
}

func firstValue(q url.Values, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// fromPath handles exactly /r/<id> and /invite/<id>. For custom schemes such as
// challengeties://invite/<id> the first segment lands in the host. Deeper paths
// belong to other screens and carry no referral.
func fromPath(u *url.URL) string {
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if u.Scheme != "http" && u.Scheme != "https" && u.Host != "" {
		segs = append([]string{u.Host}, segs...)
	}
	if len(segs) != 2 {
		return ""
	}
	for _, p := range pathPrefixes {
		if strings.EqualFold(segs[0], p) {
			return segs[1]
		}
	}
	return ""
}

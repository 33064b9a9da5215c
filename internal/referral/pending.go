package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository"
)

// Storage keys. Legacy keys are only ever read and removed.
const (
	PendingKey = "referral.pending.v2"

	LegacyReferrerKey = "referrerId"
	LegacySourceKey   = "referrerSrc"
	LegacyTimeKey     = "referrerTs"
)

const pendingVersion = 2

type pendingRecord struct {
	V          int    `json:"v"`
	ReferrerID string `json:"referrerId"`
	Src        string `json:"src"`
	TS         int64  `json:"ts"` // unix millis
}

// PendingStore keeps the last captured referrer until it is consumed.
type PendingStore struct {
	kv repository.KeyValueStore
}

// NewPendingStore wraps a key-value store.
func NewPendingStore(kv repository.KeyValueStore) *PendingStore {
	return &PendingStore{kv: kv}
}

// Store overwrites any pending referrer (last link wins).
func (s *PendingStore) Store(ctx context.Context, referrerID, src string, ts time.Time) error {
	if referrerID == "" {
		return errs.ErrInvalidLink
	}
	b, err := json.Marshal(pendingRecord{V: pendingVersion, ReferrerID: referrerID, Src: src, TS: ts.UnixMilli()})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, PendingKey, string(b))
}

// ConsumeAndClear takes the current record and every legacy key in one step and
// returns the pending referrer, preferring the current record. All keys are gone
// afterwards whether or not anything was found. An empty result is not an error.
func (s *PendingStore) ConsumeAndClear(ctx context.Context) (model.PendingReferrer, error) {
	keys := []string{PendingKey, LegacyReferrerKey, LegacySourceKey, LegacyTimeKey}
	vals, err := s.kv.Take(ctx, keys...)
	if err != nil {
		if rerr := s.kv.Remove(ctx, keys...); rerr != nil {
			return model.PendingReferrer{}, fmt.Errorf("clear pending referrer: %w", errors.Join(err, rerr))
		}
		return model.PendingReferrer{}, fmt.Errorf("take pending referrer: %w", err)
	}
	if p, ok := decodeCurrent(vals[PendingKey]); ok {
		return p, nil
	}
	return decodeLegacy(vals), nil
}

func decodeCurrent(raw string) (model.PendingReferrer, bool) {
	if raw == "" {
		return model.PendingReferrer{}, false
	}
	var rec pendingRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.ReferrerID == "" {
		return model.PendingReferrer{}, false
	}
	return model.PendingReferrer{
		ReferrerID: rec.ReferrerID,
		Src:        rec.Src,
		Timestamp:  time.UnixMilli(rec.TS),
	}, true
}

func decodeLegacy(vals map[string]string) model.PendingReferrer {
	id := vals[LegacyReferrerKey]
	if id == "" {
		return model.PendingReferrer{}
	}
	var ts time.Time
	if ms, err := strconv.ParseInt(vals[LegacyTimeKey], 10, 64); err == nil {
		ts = time.UnixMilli(ms)
	}
	return model.PendingReferrer{ReferrerID: id, Src: vals[LegacySourceKey], Timestamp: ts}
}

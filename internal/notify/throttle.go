package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/limiter"
	"github.com/challengeties/rewards/internal/model"
)

// ErrThrottled is returned by Throttled.Send when the notification was dropped.
var ErrThrottled = errors.New("notification throttled")

// Throttled drops notifications that a limiter rejects, keyed by user and kind.
type Throttled struct {
	next Dispatcher
	lim  limiter.Limiter
	log  *zap.Logger
}

// NewThrottled wraps next with lim.
func NewThrottled(next Dispatcher, lim limiter.Limiter, log *zap.Logger) *Throttled {
	if log == nil {
		log = zap.NewNop()
	}
	return &Throttled{next: next, lim: lim, log: log}
}

// Send forwards n unless the user already got one of its kind within the window,
// in which case it returns ErrThrottled. A failed send gives its slot back.
func (t *Throttled) Send(ctx context.Context, n model.Notification) error {
	ok, wait, err := t.lim.Reserve(ctx, n.UserID, n.Kind)
	if err != nil {
		return err
	}
	if !ok {
		t.log.Debug("notification throttled",
			zap.String("user_id", n.UserID), zap.String("kind", n.Kind), zap.Duration("retry_after", wait))
		return ErrThrottled
	}
	if err := t.next.Send(ctx, n); err != nil {
		if rerr := t.lim.Release(ctx, n.UserID, n.Kind); rerr != nil {
			t.log.Warn("throttle release failed",
				zap.String("user_id", n.UserID), zap.String("kind", n.Kind), zap.Error(rerr))
		}
		return err
	}
	return nil
}

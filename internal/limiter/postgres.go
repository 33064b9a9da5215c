package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter: one message per (user, topic) per window.
type PG struct {
	pool   pgxQuerier
	window time.Duration
}

var _ Limiter = (*PG)(nil)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPGWithQuerier constructs a PostgreSQL-backed limiter over any querier.
func NewPGWithQuerier(q pgxQuerier, window time.Duration) *PG {
	return &PG{pool: q, window: window}
}

// Reserve stamps (user, topic) in one conditional upsert. The row only moves when
// the previous send is older than the window, so concurrent callers cannot both pass.
func (l *PG) Reserve(ctx context.Context, userID, topic string) (bool, time.Duration, error) {
	const q = `
INSERT INTO nudge_limiter (user_id, topic, sent_count, last_sent)
VALUES ($1,$2,1,now())
ON CONFLICT (user_id, topic)
DO UPDATE SET sent_count=nudge_limiter.sent_count+1, last_sent=now()
WHERE nudge_limiter.last_sent <= now() - make_interval(secs => $3)
RETURNING last_sent`
	var stamped time.Time
	err := l.pool.QueryRow(ctx, q, userID, topic, l.window.Seconds()).Scan(&stamped)
	switch {
	case err == nil:
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, l.wait(ctx, userID, topic), nil
	default:
		return false, 0, err
	}
}

// wait is best effort; it only feeds logs.
func (l *PG) wait(ctx context.Context, userID, topic string) time.Duration {
	const q = `SELECT last_sent FROM nudge_limiter WHERE user_id=$1 AND topic=$2`
	var last time.Time
	if err := l.pool.QueryRow(ctx, q, userID, topic).Scan(&last); err != nil {
		return l.window
	}
	if w := time.Until(last.Add(l.window)); w > 0 {
		return w
	}
	return 0
}

// Release backdates the last stamp by one window so the next Reserve passes.
func (l *PG) Release(ctx context.Context, userID, topic string) error {
	const q = `
UPDATE nudge_limiter
SET sent_count=GREATEST(sent_count-1, 0), last_sent=last_sent - make_interval(secs => $3)
WHERE user_id=$1 AND topic=$2`
	_, err := l.pool.Exec(ctx, q, userID, topic, l.window.Seconds())
	return err
}

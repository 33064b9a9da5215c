package notify

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/challengeties/rewards/internal/model"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Outbox persists notifications and events to PostgreSQL for a delivery process.
type Outbox struct{ db execer }

// NewOutbox wraps a pool (or anything that can Exec).
func NewOutbox(db execer) *Outbox { return &Outbox{db: db} }

// Send inserts the notification; re-sending the same id is a no-op.
func (o *Outbox) Send(ctx context.Context, n model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, kind, title, body, data, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING`
	data, err := json.Marshal(nonNil(n.Data))
	if err != nil {
		return err
	}
	_, err = o.db.Exec(ctx, q, n.ID, n.UserID, n.Kind, n.Title, n.Body, data, n.CreatedAt)
	return err
}

// Log inserts the event.
func (o *Outbox) Log(ctx context.Context, e model.Event) error {
	const q = `
INSERT INTO analytics_events (id, name, user_id, props, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO NOTHING`
	props, err := json.Marshal(nonNil(e.Props))
	if err != nil {
		return err
	}
	_, err = o.db.Exec(ctx, q, e.ID, e.Name, e.UserID, props, e.At)
	return err
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

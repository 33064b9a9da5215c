// Package notify contains the outbound collaborators of the reward ledger:
// push notification dispatch and analytics.
package notify

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/model"
)

// Dispatcher sends a notification to a user.
type Dispatcher interface {
	Send(ctx context.Context, n model.Notification) error
}

// Analytics records an analytics event.
type Analytics interface {
	Log(ctx context.Context, e model.Event) error
}

// NewNotification fills id and timestamp.
func NewNotification(userID, kind, title, body string, data map[string]string) model.Notification {
	return model.Notification{
		ID:        uuid.Must(uuid.NewV4()).String(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// NewEvent fills id and timestamp.
func NewEvent(name, userID string, props map[string]string) model.Event {
	return model.Event{
		ID:     uuid.Must(uuid.NewV4()).String(),
		Name:   name,
		UserID: userID,
		Props:  props,
		At:     time.Now().UTC(),
	}
}

// Log writes notifications and events to a zap logger. Used for local runs.
type Log struct{ log *zap.Logger }

// NewLog constructs a logging sink.
func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

func (l *Log) Send(_ context.Context, n model.Notification) error {
	l.log.Info("notification",
		zap.String("id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("kind", n.Kind),
		zap.String("title", n.Title),
		zap.Any("data", n.Data),
	)
	return nil
}

func (l *Log) Log(_ context.Context, e model.Event) error {
	l.log.Info("analytics",
		zap.String("id", e.ID),
		zap.String("event", e.Name),
		zap.String("user_id", e.UserID),
		zap.Any("props", e.Props),
	)
	return nil
}

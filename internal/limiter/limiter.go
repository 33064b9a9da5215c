// Package limiter throttles repeated notifications to the same user.
package limiter

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a user may receive another message on a topic.
type Limiter interface {
	// Reserve atomically checks the window and, when a message is allowed, records
	// it as sent. A rejected reservation reports how long until the next one may pass.
	Reserve(ctx context.Context, userID, topic string) (bool, time.Duration, error)
	// Release gives back a reservation whose message was never delivered.
	Release(ctx context.Context, userID, topic string) error
}

// Memory is an in-process Limiter with a fixed window.
type Memory struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration) *Memory {
	return &Memory{window: window, now: time.Now, last: map[string]time.Time{}}
}

func (m *Memory) Reserve(_ context.Context, userID, topic string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "\x00" + topic
	now := m.now()
	if t, ok := m.last[key]; ok {
		if wait := t.Add(m.window).Sub(now); wait > 0 {
			return false, wait, nil
		}
	}
	m.last[key] = now
	return true, 0, nil
}

func (m *Memory) Release(_ context.Context, userID, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "\x00" + topic
	if t, ok := m.last[key]; ok {
		m.last[key] = t.Add(-m.window)
	}
	return nil
}

package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/model"
)

// Async runs dispatches in the background. Send and Log never fail; errors are logged.
// Background work is detached from the caller's cancellation and bounded by timeout.
type Async struct {
	next      Dispatcher
	analytics Analytics
	log       *zap.Logger
	timeout   time.Duration

	wg sync.WaitGroup
}

// NewAsync wraps a dispatcher and an analytics sink; either may be nil.
func NewAsync(next Dispatcher, analytics Analytics, log *zap.Logger, timeout time.Duration) *Async {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, analytics: analytics, log: log, timeout: timeout}
}

func (a *Async) Send(ctx context.Context, n model.Notification) error {
	if a.next == nil {
		return nil
	}
	a.run(ctx, func(ctx context.Context) {
		if err := a.next.Send(ctx, n); err != nil {
			a.log.Warn("notification dispatch failed",
				zap.String("user_id", n.UserID), zap.String("kind", n.Kind), zap.Error(err))
		}
	})
	return nil
}

func (a *Async) Log(ctx context.Context, e model.Event) error {
	if a.analytics == nil {
		return nil
	}
	a.run(ctx, func(ctx context.Context) {
		if err := a.analytics.Log(ctx, e); err != nil {
			a.log.Warn("analytics log failed", zap.String("event", e.Name), zap.Error(err))
		}
	})
	return nil
}

func (a *Async) run(parent context.Context, fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("panic in background dispatch", zap.Any("reason", r))
			}
		}()
		fn(ctx)
	}()
}

// Wait blocks until all background dispatches finished.
func (a *Async) Wait() { a.wg.Wait() }

// Package ratelimit implements the per-session switch-rate limiter
// (spec.md §4.3): a shared budget stored in the hot store so multiple
// instances enforce one counter.
package ratelimit

import (
	"context"
	"time"
)

// Incrementer is the hot-store operation the limiter depends on.
// Satisfied by internal/store.RedisStore.RateLimitIncrement.
type Incrementer interface {
	RateLimitIncrement(ctx context.Context, sessionID string, window time.Duration) (int64, error)
}

// SwitchLimiter enforces default 10 switch requests/second per
// session_id, with the counter shared across instances via the hot
// store's atomic INCR/EXPIRE.
type SwitchLimiter struct {
	store      Incrementer
	perSecond  int64
	window     time.Duration
}

// NewSwitchLimiter builds a limiter admitting perSecond switches per
// session within a 1-second window.
func NewSwitchLimiter(store Incrementer, perSecond int) *SwitchLimiter {
	return &SwitchLimiter{store: store, perSecond: int64(perSecond), window: time.Second}
}

// Allow increments the session's counter and reports whether the
// request is admitted.
func (l *SwitchLimiter) Allow(ctx context.Context, sessionID string) (bool, error) {
	count, err := l.store.RateLimitIncrement(ctx, sessionID, l.window)
	if err != nil {
		return false, err
	}
	return count <= l.perSecond, nil
}

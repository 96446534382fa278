// Package syncengine implements C2: the pure transition algebra over
// session.Session plus the store-backed retry-on-conflict loop that
// drives it. The engine itself performs no transport I/O beyond the
// Store it is given and a single read of the wall clock per mutation.
package syncengine

import (
	"context"
	"math/rand"
	"time"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
)

// Store is the subset of C1's contract the engine depends on. Satisfied
// by internal/store.RedisStore; kept as an interface here so the engine
// stays transport-agnostic and unit-testable against a fake.
type Store interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Create(ctx context.Context, s *session.Session) error
	Update(ctx context.Context, s *session.Session, expectedVersion int64) error
	Delete(ctx context.Context, sessionID string) error
}

// Clock abstracts "now" so transitions are deterministically testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Engine is C2.
type Engine struct {
	store           Store
	clock           Clock
	retryMax        int
	retryBaseDelay  time.Duration
}

// New builds an Engine. retryMax is spec.md §9's version_conflict_retry_max
// (default 3).
func New(store Store, retryMax int) *Engine {
	return &Engine{
		store:          store,
		clock:          systemClock{},
		retryMax:       retryMax,
		retryBaseDelay: 5 * time.Millisecond,
	}
}

// WithClock overrides the clock, for tests.
func (e *Engine) WithClock(c Clock) *Engine {
	e.clock = c
	return e
}

// mutate re-reads the session, applies fn to a clone, and writes back with
// expected_version = observed version, retrying up to retryMax times on a
// version conflict (spec.md §4.2 "Concurrency strategy"). fn must be a
// pure function of (session, now) with no I/O.
func (e *Engine) mutate(ctx context.Context, sessionID string, fn func(*session.Session, time.Time) (*session.Session, error)) (*session.Session, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		current, err := e.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, svcerrors.SessionNotFound(sessionID)
		}

		next, err := fn(current.Clone(), e.clock.Now())
		if err != nil {
			return nil, err
		}

		err = e.store.Update(ctx, next, current.Version)
		if err == nil {
			return next, nil
		}

		svcErr, ok := svcerrors.As(err)
		if !ok || svcErr.Code != svcerrors.CodeConflict {
			return nil, err
		}
		lastErr = err

		if attempt < e.retryMax {
			jitter := time.Duration(rand.Int63n(int64(e.retryBaseDelay)))
			select {
			case <-time.After(e.retryBaseDelay + jitter):
			case <-ctx.Done():
				return nil, svcerrors.Timeout(sessionID)
			}
		}
	}
	return nil, lastErr
}

// CreateSession validates cfg, constructs the pending initial state, and
// persists it.
func (e *Engine) CreateSession(ctx context.Context, cfg CreateConfig) (*session.Session, error) {
	s, err := buildInitialSession(cfg, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := e.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// StartSession requires pending; see applyStart.
func (e *Engine) StartSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return e.mutate(ctx, sessionID, applyStart)
}

// SwitchCycle is the hot path; next optionally pins the successor.
func (e *Engine) SwitchCycle(ctx context.Context, sessionID string, next *NextSelector) (*session.Session, error) {
	return e.mutate(ctx, sessionID, func(s *session.Session, now time.Time) (*session.Session, error) {
		return applySwitch(s, now, next)
	})
}

// PauseSession requires running; see applyPause.
func (e *Engine) PauseSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return e.mutate(ctx, sessionID, applyPause)
}

// ResumeSession requires paused; see applyResume.
func (e *Engine) ResumeSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return e.mutate(ctx, sessionID, applyResume)
}

// CompleteSession is admitted from running or paused and ends in
// completed. With outcome "cancel" it is admitted from any status but
// completed or cancelled and ends in cancelled. The outcome is not stored
// on the session; only "cancel" changes the resulting status.
func (e *Engine) CompleteSession(ctx context.Context, sessionID, outcome string) (*session.Session, error) {
	return e.mutate(ctx, sessionID, func(s *session.Session, now time.Time) (*session.Session, error) {
		return applyComplete(s, now, outcome)
	})
}

// DeleteSession is unconditional removal (idempotent at the store layer).
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	return e.store.Delete(ctx, sessionID)
}

// GetCurrentState is a pass-through read.
func (e *Engine) GetCurrentState(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, svcerrors.SessionNotFound(sessionID)
	}
	return s, nil
}

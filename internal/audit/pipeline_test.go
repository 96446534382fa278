package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu        sync.Mutex
	failUntil int
	calls     map[string]int
	written   []Job
}

func newFakeWriter(failUntil int) *fakeWriter {
	return &fakeWriter{failUntil: failUntil, calls: make(map[string]int)}
}

func (f *fakeWriter) Write(_ context.Context, job Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := job.SessionID
	f.calls[key]++
	if f.calls[key] <= f.failUntil {
		return errors.New("transient failure")
	}
	f.written = append(f.written, job)
	return nil
}

func testLogger() *logging.Logger { return logging.New("test", "error", "json") }

func TestEnqueueWriteSucceedsEventually(t *testing.T) {
	writer := newFakeWriter(2)
	p := New(writer, testLogger(), nil, Config{Workers: 1, RetryAttempts: 5, BackoffBaseMs: 1})
	defer p.Close(true)

	st := &session.Session{SessionID: "s1", Version: 1, Status: session.StatusRunning}
	p.EnqueueWrite("s1", st, EventStarted)

	require.Eventually(t, func() bool {
		writer.mu.Lock()
		defer writer.mu.Unlock()
		return len(writer.written) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueWriteExhaustsRetriesIntoFailedBucket(t *testing.T) {
	writer := newFakeWriter(100)
	p := New(writer, testLogger(), nil, Config{Workers: 1, RetryAttempts: 2, BackoffBaseMs: 1})
	defer p.Close(true)

	st := &session.Session{SessionID: "s2", Version: 1, Status: session.StatusRunning}
	p.EnqueueWrite("s2", st, EventStarted)

	require.Eventually(t, func() bool {
		return len(p.FailedJobs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	failed := p.FailedJobs()
	assert.Equal(t, "s2", failed[0].SessionID)
}

func TestCloseForceDoesNotBlock(t *testing.T) {
	writer := newFakeWriter(0)
	p := New(writer, testLogger(), nil, Config{Workers: 2})

	done := make(chan struct{})
	go func() {
		p.Close(true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close(true) should not block")
	}
}

func TestEnqueueWriteNeverBlocksOnSaturatedQueue(t *testing.T) {
	writer := newFakeWriter(1000)
	p := New(writer, testLogger(), nil, Config{QueueDepth: 1, Workers: 0, RetryAttempts: 1, BackoffBaseMs: 1})
	defer p.Close(true)

	st := &session.Session{SessionID: "s3", Version: 1}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.EnqueueWrite("s3", st, EventSwitched)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EnqueueWrite must never block the hot path")
	}
}

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemQueueFIFOAndLen(t *testing.T) {
	q := newMemQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{SessionID: "a"}))
	require.NoError(t, q.Enqueue(ctx, Job{SessionID: "b"}))

	depth, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "a", job.SessionID)

	job, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "b", job.SessionID)
}

func TestMemQueueDequeueTimesOutWhenEmpty(t *testing.T) {
	q := newMemQueue()
	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMemQueueDequeueRespectsContextCancellation(t *testing.T) {
	q := newMemQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		_, _ = q.Dequeue(ctx, 5*time.Second)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dequeue should return promptly on context cancellation")
	}
}

func TestRedisQueueKeyLayout(t *testing.T) {
	q := NewRedisQueue(nil, "turnsync:")
	assert.Equal(t, "turnsync:audit:queue", q.key)
}

func TestPipelineFallsBackToMemQueueWhenUnconfigured(t *testing.T) {
	writer := newFakeWriter(0)
	p := New(writer, testLogger(), nil, Config{Workers: 1, RetryAttempts: 1, BackoffBaseMs: 1})
	defer p.Close(true)

	st := &session.Session{SessionID: "s4", Version: 1}
	p.EnqueueWrite("s4", st, EventCreated)

	require.Eventually(t, func() bool {
		writer.mu.Lock()
		defer writer.mu.Unlock()
		return len(writer.written) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

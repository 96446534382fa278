// Package audit implements C5: the asynchronous durable event trail.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/metrics"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
)

// EventKind labels the transition an audit Job records.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventStarted  EventKind = "started"
	EventSwitched EventKind = "switched"
	EventPaused   EventKind = "paused"
	EventResumed  EventKind = "resumed"
	EventCompleted EventKind = "completed"
	EventDeleted  EventKind = "deleted"
)

// Job is one durable-write unit: a post-transition state plus the event
// kind that produced it. Serialized to JSON for the durable queue
// substrate (internal/audit.RedisQueue); attempt is process-local retry
// bookkeeping and does not round-trip.
type Job struct {
	SessionID  string           `json:"session_id"`
	Version    int64            `json:"version"`
	EventKind  EventKind        `json:"event_kind"`
	State      *session.Session `json:"state"`
	EnqueuedAt time.Time        `json:"enqueued_at"`

	attempt int
}

// Writer is the durable-store side C5 depends on. Satisfied by *Store.
type Writer interface {
	Write(ctx context.Context, job Job) error
}

// NoopWriter discards every job. Used when no durable store is
// configured, so the pipeline still drains without blocking callers.
type NoopWriter struct{}

func (NoopWriter) Write(context.Context, Job) error { return nil }

// Pipeline is C5: a durable queue plus a worker pool that drains it into
// Writer with exponential-backoff retry.
type Pipeline struct {
	writer  Writer
	logger  *logging.Logger
	metrics *metrics.Metrics

	queue         Queue
	maxQueueDepth int

	retryAttempts int
	backoffBaseMs int

	mu         sync.Mutex
	failedJobs []Job

	wg     sync.WaitGroup
	cancel context.CancelFunc
	ctx    context.Context
}

// Config configures a Pipeline. Queue is the durable substrate
// (spec.md §4.5: "the queue MUST survive process restarts"); a nil Queue
// falls back to an in-process stand-in, for tests and for the no-
// durable-store dev mode. QueueDepth bounds it (spec.md §5: enqueue_write
// must still return quickly under pressure, accepting bounded loss over
// blocking); Workers is the pool size.
type Config struct {
	Queue          Queue
	QueueDepth     int
	Workers        int
	RetryAttempts  int
	BackoffBaseMs  int
}

// New builds and starts a Pipeline's worker pool.
func New(writer Writer, logger *logging.Logger, m *metrics.Metrics, cfg Config) *Pipeline {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.BackoffBaseMs <= 0 {
		cfg.BackoffBaseMs = 2000
	}

	queue := cfg.Queue
	if queue == nil {
		queue = newMemQueue()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		writer:        writer,
		logger:        logger,
		metrics:       m,
		queue:         queue,
		maxQueueDepth: cfg.QueueDepth,
		retryAttempts: cfg.RetryAttempts,
		backoffBaseMs: cfg.BackoffBaseMs,
		ctx:           ctx,
		cancel:        cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// EnqueueWrite admits a record to the durable queue without blocking the
// hot path; if the queue is saturated the record is dropped and a
// warning is logged rather than applying backpressure to the caller
// (spec.md §5).
func (p *Pipeline) EnqueueWrite(sessionID string, postState *session.Session, kind EventKind) {
	job := Job{
		SessionID:  sessionID,
		Version:    postState.Version,
		EventKind:  kind,
		State:      postState,
		EnqueuedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	if p.maxQueueDepth > 0 {
		if depth, err := p.queue.Len(ctx); err == nil && depth >= int64(p.maxQueueDepth) {
			p.logger.WithFields(map[string]interface{}{
				"session_id": sessionID,
				"version":    postState.Version,
			}).Warn("audit queue saturated, dropping record")
			return
		}
	}

	if err := p.queue.Enqueue(ctx, job); err != nil {
		p.logger.WithFields(map[string]interface{}{
			"session_id": sessionID,
			"version":    postState.Version,
		}).WithError(err).Warn("audit enqueue failed, dropping record")
		return
	}

	if p.metrics != nil {
		if depth, err := p.queue.Len(context.Background()); err == nil {
			p.metrics.AuditQueueDepth.Set(float64(depth))
		}
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		if p.ctx.Err() != nil {
			return
		}

		job, err := p.queue.Dequeue(p.ctx, time.Second)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.logger.WithError(err).Warn("audit dequeue failed")
			continue
		}
		if job == nil {
			continue
		}

		p.process(*job)
		if p.metrics != nil {
			if depth, err := p.queue.Len(context.Background()); err == nil {
				p.metrics.AuditQueueDepth.Set(float64(depth))
			}
		}
	}
}

// process writes job, making up to retryAttempts attempts in total with
// exponential backoff between them (backoffBaseMs doubled each time:
// ~2s,4s,8s,16s by default) before moving it to the failed-jobs bucket
// and emitting a persistent-failure alert.
func (p *Pipeline) process(job Job) {
	writeCtx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	err := p.writer.Write(writeCtx, job)
	cancel()
	if err == nil {
		if p.metrics != nil {
			p.metrics.AuditCompleted.Inc()
		}
		return
	}

	job.attempt++
	if job.attempt >= p.retryAttempts {
		p.failJob(job, err)
		return
	}

	if p.metrics != nil {
		p.metrics.AuditRetried.Inc()
	}
	delay := time.Duration(p.backoffBaseMs<<uint(job.attempt-1)) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-p.ctx.Done():
		return
	case <-timer.C:
		p.process(job)
	}
}

func (p *Pipeline) failJob(job Job, cause error) {
	p.mu.Lock()
	p.failedJobs = append(p.failedJobs, job)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.AuditFailed.Inc()
	}

	payload := map[string]interface{}{
		"event_kind": string(job.EventKind),
		"state":      job.State,
	}
	p.logger.LogPersistentFailure(context.Background(), job.SessionID, job.Version, cause, payload)
}

// FailedJobs returns a snapshot of the failed-jobs bucket, for the
// read-only admin surface.
func (p *Pipeline) FailedJobs() []Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Job, len(p.failedJobs))
	copy(out, p.failedJobs)
	return out
}

// QueueDepth reports the number of pending jobs, for metrics.
func (p *Pipeline) QueueDepth() int {
	depth, err := p.queue.Len(context.Background())
	if err != nil {
		return 0
	}
	return int(depth)
}

// Close stops the worker pool. force=false waits for the queue to drain
// before cancelling workers (production); force=true cancels immediately
// and drops in-flight jobs (test harnesses), per spec.md §4.5.
func (p *Pipeline) Close(force bool) {
	if force {
		p.cancel()
		p.wg.Wait()
		return
	}

	for {
		depth, err := p.queue.Len(context.Background())
		if err != nil || depth == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	p.cancel()
	p.wg.Wait()
}

package audit

import (
	"github.com/robfig/cron/v3"
)

// Digest runs a periodic queue-depth/failed-job snapshot, independent of
// the per-job retry backoff (SPEC_FULL.md §11).
type Digest struct {
	cron     *cron.Cron
	pipeline *Pipeline
}

// NewDigest schedules pipeline's snapshot on the given cron spec
// (default "@every 1m").
func NewDigest(pipeline *Pipeline, spec string) *Digest {
	if spec == "" {
		spec = "@every 1m"
	}
	c := cron.New()
	d := &Digest{cron: c, pipeline: pipeline}
	_, _ = c.AddFunc(spec, d.snapshot)
	return d
}

func (d *Digest) snapshot() {
	depth := d.pipeline.QueueDepth()
	failed := len(d.pipeline.FailedJobs())
	d.pipeline.logger.WithFields(map[string]interface{}{
		"queue_depth": depth,
		"failed_jobs": failed,
	}).Info("audit pipeline digest")
}

// Start begins the cron scheduler.
func (d *Digest) Start() { d.cron.Start() }

// Stop halts the cron scheduler, blocking until any running job
// completes.
func (d *Digest) Stop() { <-d.cron.Stop().Done() }

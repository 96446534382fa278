// Package clockoracle implements C6: the authoritative server time read.
package clockoracle

import (
	"sync"
	"time"
)

// ServerVersion is an opaque build/revision marker returned alongside
// each reading, so clients can detect a server restart or rollout.
const ServerVersion = "1"

// DriftToleranceMs is the tolerance communicated to clients for their
// offset computation.
const DriftToleranceMs = 50

// Reading is the contract response: {timestamp_ms, server_version,
// drift_tolerance_ms}.
type Reading struct {
	TimestampMs     int64  `json:"timestamp_ms"`
	ServerVersion   string `json:"server_version"`
	DriftToleranceMs int64 `json:"drift_tolerance_ms"`
}

// Oracle serves monotonic server time readings. It keeps a microsecond
// counter that strictly increases on every call to Now, advancing by at
// least one microsecond when wall-clock time.Now() does not itself
// advance (SPEC_FULL.md §12). Readings report that counter truncated to
// whole milliseconds, so TimestampMs never decreases but two readings
// taken within the same millisecond carry the same TimestampMs.
type Oracle struct {
	mu   sync.Mutex
	last int64 // microseconds since epoch
}

// New builds an Oracle.
func New() *Oracle {
	return &Oracle{}
}

// Now returns the next monotonic reading.
func (o *Oracle) Now() Reading {
	o.mu.Lock()
	defer o.mu.Unlock()

	us := time.Now().UTC().UnixMicro()
	if us <= o.last {
		us = o.last + 1
	}
	o.last = us

	return Reading{
		TimestampMs:      us / 1000,
		ServerVersion:    ServerVersion,
		DriftToleranceMs: DriftToleranceMs,
	}
}

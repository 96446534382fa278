// Package metrics exposes the Prometheus surface for every component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Metrics is the full set of counters/histograms/gauges scraped at
// /metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	ErrorsTotal      *prometheus.CounterVec

	StoreOperationDuration *prometheus.HistogramVec
	StoreErrorsTotal       *prometheus.CounterVec

	VersionConflictsTotal prometheus.Counter
	VersionConflictRetriesExhaustedTotal prometheus.Counter

	PushObserversGauge *prometheus.GaugeVec
	PushMessagesTotal  *prometheus.CounterVec

	AuditQueueDepth  prometheus.Gauge
	AuditCompleted   prometheus.Counter
	AuditFailed      prometheus.Counter
	AuditRetried     prometheus.Counter

	HostCPUPercent prometheus.Gauge
	HostMemPercent prometheus.Gauge

	registerer prometheus.Registerer
}

// New builds a Metrics instance registered against the default registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry builds a Metrics instance registered against reg,
// allowing tests to use an isolated registry.
func NewWithRegistry(serviceName string, reg prometheus.Registerer) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "turnsync_requests_total",
			Help:        "Total request-surface requests by operation and status.",
			ConstLabels: constLabels,
		}, []string{"operation", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "turnsync_request_duration_ms",
			Help:        "Request-surface latency in milliseconds by operation.",
			Buckets:     []float64{1, 2, 3, 5, 10, 25, 50, 100, 250},
			ConstLabels: constLabels,
		}, []string{"operation"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "turnsync_requests_in_flight",
			Help:        "Requests currently being handled.",
			ConstLabels: constLabels,
		}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "turnsync_errors_total",
			Help:        "Errors by error code.",
			ConstLabels: constLabels,
		}, []string{"code"}),

		StoreOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "turnsync_store_operation_duration_ms",
			Help:        "Hot-store operation latency in milliseconds.",
			Buckets:     []float64{1, 2, 3, 5, 10, 25, 50},
			ConstLabels: constLabels,
		}, []string{"operation"}),

		StoreErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "turnsync_store_errors_total",
			Help:        "Hot-store transport errors by operation.",
			ConstLabels: constLabels,
		}, []string{"operation"}),

		VersionConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "turnsync_version_conflicts_total",
			Help:        "Optimistic-concurrency conflicts observed by the sync engine.",
			ConstLabels: constLabels,
		}),

		VersionConflictRetriesExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "turnsync_version_conflict_retries_exhausted_total",
			Help:        "Version-conflict retries that exhausted the retry bound.",
			ConstLabels: constLabels,
		}),

		PushObserversGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "turnsync_push_observers",
			Help:        "Currently connected push observers by instance.",
			ConstLabels: constLabels,
		}, []string{"instance"}),

		PushMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "turnsync_push_messages_total",
			Help:        "Push messages delivered by message type.",
			ConstLabels: constLabels,
		}, []string{"type"}),

		AuditQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "turnsync_audit_queue_depth",
			Help:        "Pending audit jobs.",
			ConstLabels: constLabels,
		}),

		AuditCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "turnsync_audit_completed_total",
			Help:        "Audit jobs written successfully.",
			ConstLabels: constLabels,
		}),

		AuditFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "turnsync_audit_failed_total",
			Help:        "Audit jobs that exhausted retries.",
			ConstLabels: constLabels,
		}),

		AuditRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "turnsync_audit_retried_total",
			Help:        "Audit job retry attempts.",
			ConstLabels: constLabels,
		}),

		HostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "turnsync_host_cpu_percent",
			Help:        "Host CPU utilization percent.",
			ConstLabels: constLabels,
		}),

		HostMemPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "turnsync_host_mem_percent",
			Help:        "Host memory utilization percent.",
			ConstLabels: constLabels,
		}),

		registerer: reg,
	}

	for _, c := range []prometheus.Collector{
		m.RequestsTotal, m.RequestDuration, m.RequestsInFlight, m.ErrorsTotal,
		m.StoreOperationDuration, m.StoreErrorsTotal,
		m.VersionConflictsTotal, m.VersionConflictRetriesExhaustedTotal,
		m.PushObserversGauge, m.PushMessagesTotal,
		m.AuditQueueDepth, m.AuditCompleted, m.AuditFailed, m.AuditRetried,
		m.HostCPUPercent, m.HostMemPercent,
	} {
		reg.MustRegister(c)
	}

	return m
}

// SampleHost refreshes the host CPU/memory gauges. Intended to be called
// periodically (e.g. from the same cron that drives the audit digest).
func (m *Metrics) SampleHost() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.HostCPUPercent.Set(percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.HostMemPercent.Set(vm.UsedPercent)
	}
}

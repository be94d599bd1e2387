// Package metrics provides the Prometheus metrics for the audit engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all audit metrics.
	MetricsNamespace = "seoaudit"
)

// Metrics holds all Prometheus metrics for the audit engine.
type Metrics struct {
	// Update loop metrics
	UpdateRunsTotal       *prometheus.CounterVec
	UpdateRunErrors       prometheus.Counter
	UpdateDurationSeconds prometheus.Histogram
	UnprocessedPercent    prometheus.Gauge

	// Worker metrics
	WorkerBatchesTotal *prometheus.CounterVec
	WorkerItemsTotal   *prometheus.CounterVec
	WorkerErrorsTotal  *prometheus.CounterVec
	WorkerRateLimits   *prometheus.CounterVec

	// Classification metrics
	ItemsClassifiedTotal *prometheus.CounterVec
	CascadeRunsTotal     prometheus.Counter

	// Snapshot metrics
	SnapshotsStartedTotal  *prometheus.CounterVec
	SnapshotsFinishedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all audit metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initUpdateMetrics(factory)
	m.initWorkerMetrics(factory)
	m.initClassificationMetrics(factory)
	m.initSnapshotMetrics(factory)

	return m
}

// initUpdateMetrics initializes update loop metrics.
func (m *Metrics) initUpdateMetrics(factory promauto.Factory) {
	m.UpdateRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "update_runs_total",
			Help:      "Total number of update loop invocations",
		},
		[]string{"trigger", "outcome"},
	)

	m.UpdateRunErrors = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "update_run_errors_total",
			Help:      "Total number of update loop invocations that failed",
		},
	)

	m.UpdateDurationSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "update_duration_seconds",
			Help:      "Duration of one update loop invocation in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 13), // 0.1s to ~7min
		},
	)

	m.UnprocessedPercent = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "unprocessed_percent",
			Help:      "Estimated percentage of audit work remaining",
		},
	)
}

// initWorkerMetrics initializes worker metrics.
func (m *Metrics) initWorkerMetrics(factory promauto.Factory) {
	m.WorkerBatchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "worker_batches_total",
			Help:      "Total number of worker batch executions",
		},
		[]string{"worker"},
	)

	m.WorkerItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "worker_items_total",
			Help:      "Total number of items processed by workers",
		},
		[]string{"worker"},
	)

	m.WorkerErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "worker_errors_total",
			Help:      "Total number of worker execution errors",
		},
		[]string{"worker"},
	)

	m.WorkerRateLimits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "worker_rate_limits_total",
			Help:      "Total number of rate-limit pauses per external API",
		},
		[]string{"api"},
	)
}

// initClassificationMetrics initializes classification metrics.
func (m *Metrics) initClassificationMetrics(factory promauto.Factory) {
	m.ItemsClassifiedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "items_classified_total",
			Help:      "Total number of items classified, by resulting action",
		},
		[]string{"action"},
	)

	m.CascadeRunsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "cascade_runs_total",
			Help:      "Total number of keyword collision cascades triggered",
		},
	)
}

// initSnapshotMetrics initializes snapshot lifecycle metrics.
func (m *Metrics) initSnapshotMetrics(factory promauto.Factory) {
	m.SnapshotsStartedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "snapshots_started_total",
			Help:      "Total number of audit snapshots started",
		},
		[]string{"type"},
	)

	m.SnapshotsFinishedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "snapshots_finished_total",
			Help:      "Total number of audit snapshots promoted to current",
		},
		[]string{"type"},
	)
}

// RecordUpdateRun records one update loop invocation.
func (m *Metrics) RecordUpdateRun(trigger string, moreWork bool, durationSeconds float64) {
	outcome := "done"
	if moreWork {
		outcome = "more_work"
	}
	m.UpdateRunsTotal.WithLabelValues(trigger, outcome).Inc()
	m.UpdateDurationSeconds.Observe(durationSeconds)
}

// RecordUpdateError records a failed update loop invocation.
func (m *Metrics) RecordUpdateError() {
	m.UpdateRunErrors.Inc()
}

// RecordWorkerBatch records one worker execution and how many items it
// processed.
func (m *Metrics) RecordWorkerBatch(workerName string, progressed bool) {
	m.WorkerBatchesTotal.WithLabelValues(workerName).Inc()
	if progressed {
		m.WorkerItemsTotal.WithLabelValues(workerName).Inc()
	}
}

// RecordWorkerError records a worker execution error.
func (m *Metrics) RecordWorkerError(workerName string) {
	m.WorkerErrorsTotal.WithLabelValues(workerName).Inc()
}

// RecordRateLimit records a rate-limit pause on an external API.
func (m *Metrics) RecordRateLimit(api string) {
	m.WorkerRateLimits.WithLabelValues(api).Inc()
}

// RecordClassification records one classified item.
func (m *Metrics) RecordClassification(action string) {
	m.ItemsClassifiedTotal.WithLabelValues(action).Inc()
}

// RecordCascade records a keyword collision cascade.
func (m *Metrics) RecordCascade() {
	m.CascadeRunsTotal.Inc()
}

// RecordSnapshotStarted records a new audit snapshot.
func (m *Metrics) RecordSnapshotStarted(snapshotType string) {
	m.SnapshotsStartedTotal.WithLabelValues(snapshotType).Inc()
}

// RecordSnapshotFinished records a snapshot promotion.
func (m *Metrics) RecordSnapshotFinished(snapshotType string) {
	m.SnapshotsFinishedTotal.WithLabelValues(snapshotType).Inc()
}

// SetUnprocessedPercent publishes the current progress estimate.
func (m *Metrics) SetUnprocessedPercent(percent float64) {
	m.UnprocessedPercent.Set(percent)
}

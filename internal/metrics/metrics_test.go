package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpdateRun(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())

	m.RecordUpdateRun("cron", true, 1.5)
	m.RecordUpdateRun("cron", true, 2.0)
	m.RecordUpdateRun("web", false, 0.1)

	assert.InDelta(t, 2, testutil.ToFloat64(m.UpdateRunsTotal.WithLabelValues("cron", "more_work")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UpdateRunsTotal.WithLabelValues("web", "done")), 0.001)
}

func TestRecordWorkerBatchCountsProgress(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())

	m.RecordWorkerBatch("backlinks", true)
	m.RecordWorkerBatch("backlinks", false)
	m.RecordWorkerError("backlinks")

	assert.InDelta(t, 2, testutil.ToFloat64(m.WorkerBatchesTotal.WithLabelValues("backlinks")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WorkerItemsTotal.WithLabelValues("backlinks")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WorkerErrorsTotal.WithLabelValues("backlinks")), 0.001)
}

func TestClassificationAndSnapshotCounters(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())

	m.RecordClassification("delete")
	m.RecordClassification("delete")
	m.RecordCascade()
	m.RecordSnapshotStarted("manual")
	m.RecordSnapshotFinished("manual_finished")
	m.SetUnprocessedPercent(37.5)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ItemsClassifiedTotal.WithLabelValues("delete")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CascadeRunsTotal), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SnapshotsStartedTotal.WithLabelValues("manual")), 0.001)
	assert.InDelta(t, 37.5, testutil.ToFloat64(m.UnprocessedPercent), 0.001)
}

func TestMetricsRegisterOnce(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordRateLimit("analytics")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

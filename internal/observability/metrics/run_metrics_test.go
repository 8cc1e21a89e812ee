package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsCounters(t *testing.T) {
	m, err := NewRunMetrics(prometheus.NewRegistry(), Config{ServiceName: "kpireport", Environment: "test"})
	require.NoError(t, err)

	m.AddRecordsFetched(ResourceSubscriptions, 3)
	m.AddRecordsFetched(ResourceSubscriptions, 0)
	m.AddTransactionsWithoutAmount(2)
	m.SetReportRows(map[string]int{"active": 4, "canceled": 1})
	m.SetReportRows(map[string]int{"active": 2})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.recordsFetched.WithLabelValues(ResourceSubscriptions)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.missingAmount))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reportRows.WithLabelValues("active")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.reportRows), "previous statuses are cleared")
}

func TestObserveRun(t *testing.T) {
	m, err := NewRunMetrics(prometheus.NewRegistry(), Config{})
	require.NoError(t, err)

	start := time.Unix(1_700_000_000, 0)
	m.ObserveRun(start, start.Add(90*time.Second), nil)
	m.ObserveRun(start, start.Add(time.Second), errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(RunResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(RunResultFailure)))
	assert.Equal(t, float64(start.Add(90*time.Second).Unix()), testutil.ToFloat64(m.lastSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runDuration))
}

func TestWriteTextfile(t *testing.T) {
	m, err := NewRunMetrics(prometheus.NewRegistry(), Config{})
	require.NoError(t, err)
	m.AddSubscriptionsWithoutID(1)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, m.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kpireport_subscriptions_without_id_total")
}

func TestNilRunMetricsIsSafe(t *testing.T) {
	var m *RunMetrics
	m.AddRecordsFetched(ResourceTransactions, 1)
	m.ObserveRun(time.Now(), time.Now(), nil)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

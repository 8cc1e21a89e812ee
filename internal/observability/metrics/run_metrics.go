package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	ResourceSubscriptions = "subscriptions"
	ResourceTransactions  = "transactions"

	RunResultSuccess = "success"
	RunResultFailure = "failure"

	CohortOutcomeOK      = "ok"
	CohortOutcomeInvalid = "invalid"
	CohortOutcomeError   = "error"
)

// Config labels every series with the emitting service.
type Config struct {
	ServiceName string
	Environment string
}

// RunMetrics captures the health of KPI report runs.
type RunMetrics struct {
	recordsFetched    *prometheus.CounterVec
	pagesFetched      *prometheus.CounterVec
	fetchRetries      *prometheus.CounterVec
	duplicatesDropped *prometheus.CounterVec
	reportRows        *prometheus.GaugeVec
	missingAmount     prometheus.Counter
	missingID         prometheus.Counter
	runs              *prometheus.CounterVec
	runDuration       prometheus.Gauge
	lastSuccess       prometheus.Gauge
	cohortRequests    *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewRegistry returns a per-process registry with the Go and process
// collectors attached.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func NewRunMetrics(registry *prometheus.Registry, cfg Config) (*RunMetrics, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "kpireport"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &RunMetrics{
		registry: registry,
		recordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kpireport_records_fetched_total",
			Help:        "Records fetched from the billing API by resource.",
			ConstLabels: constLabels,
		}, []string{"resource"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kpireport_pages_fetched_total",
			Help:        "Result pages fetched from the billing API by resource.",
			ConstLabels: constLabels,
		}, []string{"resource"}),
		fetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kpireport_fetch_retries_total",
			Help:        "Billing API request retries by resource.",
			ConstLabels: constLabels,
		}, []string{"resource"}),
		duplicatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kpireport_duplicates_dropped_total",
			Help:        "Records dropped because their id was already fetched.",
			ConstLabels: constLabels,
		}, []string{"resource"}),
		reportRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "kpireport_report_rows",
			Help:        "Subscription report rows of the last run by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		missingAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kpireport_transactions_without_amount_total",
			Help:        "Transactions whose net amount could not be resolved.",
			ConstLabels: constLabels,
		}),
		missingID: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kpireport_subscriptions_without_id_total",
			Help:        "Subscriptions skipped because they carry no identifier.",
			ConstLabels: constLabels,
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kpireport_runs_total",
			Help:        "Report runs by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kpireport_run_duration_seconds",
			Help:        "Wall time of the last report run.",
			ConstLabels: constLabels,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kpireport_last_success_timestamp_seconds",
			Help:        "Unix time of the last successful report run.",
			ConstLabels: constLabels,
		}),
		cohortRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kpireport_cohort_requests_total",
			Help:        "Cohort API requests by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	if registry == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.recordsFetched, m.pagesFetched, m.fetchRetries, m.duplicatesDropped,
		m.reportRows, m.missingAmount, m.missingID, m.runs, m.runDuration,
		m.lastSuccess, m.cohortRequests,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register run metrics: %w", err)
		}
	}
	return m, nil
}

func (m *RunMetrics) AddRecordsFetched(resource string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsFetched.WithLabelValues(resource).Add(float64(n))
}

func (m *RunMetrics) IncPagesFetched(resource string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(resource).Inc()
}

func (m *RunMetrics) IncFetchRetries(resource string) {
	if m == nil {
		return
	}
	m.fetchRetries.WithLabelValues(resource).Inc()
}

func (m *RunMetrics) AddDuplicatesDropped(resource string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicatesDropped.WithLabelValues(resource).Add(float64(n))
}

// SetReportRows replaces the per-status row gauges.
func (m *RunMetrics) SetReportRows(counts map[string]int) {
	if m == nil {
		return
	}
	m.reportRows.Reset()
	for status, n := range counts {
		m.reportRows.WithLabelValues(status).Set(float64(n))
	}
}

func (m *RunMetrics) AddTransactionsWithoutAmount(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.missingAmount.Add(float64(n))
}

func (m *RunMetrics) AddSubscriptionsWithoutID(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.missingID.Add(float64(n))
}

// ObserveRun records the outcome of a run that started at start.
func (m *RunMetrics) ObserveRun(start, end time.Time, err error) {
	if m == nil {
		return
	}
	m.runDuration.Set(end.Sub(start).Seconds())
	if err != nil {
		m.runs.WithLabelValues(RunResultFailure).Inc()
		return
	}
	m.runs.WithLabelValues(RunResultSuccess).Inc()
	m.lastSuccess.Set(float64(end.Unix()))
}

func (m *RunMetrics) IncCohortRequests(outcome string) {
	if m == nil {
		return
	}
	m.cohortRequests.WithLabelValues(outcome).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil || m.registry == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	StepsProcessed *prometheus.CounterVec
	StepErrors     *prometheus.CounterVec
	FeeIncome      *prometheus.GaugeVec

	// Projection and reporting metrics
	EventsProjected  prometheus.Counter
	PointsProjected  prometheus.Counter
	ReportsGenerated prometheus.Counter
	ReportsUploaded  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg. A nil reg uses
// the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "amm_curve_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by curve kind, driver and status",
		}, []string{"curve", "driver", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"driver"}),
		StepsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "steps_processed_total",
			Help:      "Total number of replayed series rows",
		}, []string{"driver"}),
		StepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "step_errors_total",
			Help:      "Total number of runs aborted by a failing step",
		}, []string{"curve"}),
		FeeIncome: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "last_fee_income",
			Help:      "Fee income of the last completed run per curve kind",
		}, []string{"curve"}),

		EventsProjected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "pair_events_total",
			Help:      "Total number of pair events projected into block states",
		}),
		PointsProjected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "price_points_total",
			Help:      "Total number of price points produced by projection",
		}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of rendered reports",
		}),
		ReportsUploaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_uploaded_total",
			Help:      "Total number of report uploads by status",
		}, []string{"status"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last completed backtest run",
		}),
	}
}

// RecordRun records the outcome of one backtest run.
func (m *Metrics) RecordRun(curve, driver, status string, steps int, durationSeconds float64) {
	m.RunsTotal.WithLabelValues(curve, driver, status).Inc()
	m.RunDuration.WithLabelValues(driver).Observe(durationSeconds)
	m.StepsProcessed.WithLabelValues(driver).Add(float64(steps))
}

// RecordStepError counts a run aborted by a failing step.
func (m *Metrics) RecordStepError(curve string) {
	m.StepErrors.WithLabelValues(curve).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordUpload counts a report upload attempt.
func (m *Metrics) RecordUpload(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ReportsUploaded.WithLabelValues(status).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint of the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics("", nil)
	})
	return defaultMetrics
}

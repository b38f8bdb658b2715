// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RunsInFlight     prometheus.Gauge
	DaysSimulated    *prometheus.CounterVec
	TradesSimulated  *prometheus.CounterVec
	FinalReturnPct   *prometheus.GaugeVec
	StochasticRuns   prometheus.Counter
	ReportsGenerated prometheus.Counter

	// Ingestion metrics
	BarsIngested prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	ProgressClients   prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the Prometheus default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "etf_chunk_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by variant and status",
		}, []string{"variant", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"variant"}),
		RunsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_in_flight",
			Help:      "Number of simulation runs currently executing",
		}),
		DaysSimulated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "days_simulated_total",
			Help:      "Total number of trading days simulated",
		}, []string{"variant"}),
		TradesSimulated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of simulated trades by variant and action",
		}, []string{"variant", "action"}),
		FinalReturnPct: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "last_total_return_pct",
			Help:      "Total return of the most recent completed run per variant",
		}, []string{"variant"}),
		StochasticRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stochastic",
			Name:      "runs_total",
			Help:      "Total number of stochastic chunk simulations",
		}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		BarsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "price_bars_total",
			Help:      "Total number of price bars ingested",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful simulation run",
		}),
		ProgressClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "progress_clients",
			Help:      "Number of connected progress websocket clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint serving g.
// A nil g serves the Prometheus default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRun records a finished simulation run. Nil receivers are ignored.
func (m *Metrics) RecordRun(variant, status string, duration time.Duration, days int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(variant, status).Inc()
	m.RunDuration.WithLabelValues(variant).Observe(duration.Seconds())
	m.DaysSimulated.WithLabelValues(variant).Add(float64(days))
	if status == StatusOK {
		m.LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordTrades adds simulated trade counts for a variant.
func (m *Metrics) RecordTrades(variant string, buys, sells int) {
	if m == nil {
		return
	}
	m.TradesSimulated.WithLabelValues(variant, "BUY").Add(float64(buys))
	m.TradesSimulated.WithLabelValues(variant, "SELL").Add(float64(sells))
}

// RecordReturn sets the latest total return for a variant.
func (m *Metrics) RecordReturn(variant string, pct float64) {
	if m == nil {
		return
	}
	m.FinalReturnPct.WithLabelValues(variant).Set(pct)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// TrackInFlight increments the in-flight gauge and returns a func that decrements it.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.RunsInFlight.Inc()
	return m.RunsInFlight.Dec
}

// Run status labels
const (
	StatusOK        = "ok"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

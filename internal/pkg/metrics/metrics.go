package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scoring engine's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	checksTotal      *prometheus.CounterVec
	checkDuration    prometheus.Histogram
	analyzerFailures *prometheus.CounterVec
	alertsCreated    *prometheus.CounterVec
	degradedChecks   prometheus.Counter
	ipRefreshes      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_checks_total",
			Help: "Fraud checks completed, by recommendation.",
		}, []string{"recommendation"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_check_duration_seconds",
			Help:    "End-to-end fraud check latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		analyzerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_analyzer_failures_total",
			Help: "Analyzer evaluations that returned an error.",
		}, []string{"analyzer"}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_alerts_created_total",
			Help: "Fraud alerts raised, by alert type.",
		}, []string{"alert_type"}),
		degradedChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraud_degraded_checks_total",
			Help: "Checks answered with the safe default.",
		}),
		ipRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_ip_refreshes_total",
			Help: "IP intelligence refresh attempts, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.checksTotal,
		m.checkDuration,
		m.analyzerFailures,
		m.alertsCreated,
		m.degradedChecks,
		m.ipRefreshes,
	)
	return m
}

// ObserveCheck records a completed check
func (m *Metrics) ObserveCheck(recommendation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(recommendation).Inc()
	m.checkDuration.Observe(elapsed.Seconds())
}

// AnalyzerFailed records an analyzer error
func (m *Metrics) AnalyzerFailed(analyzer string) {
	if m == nil {
		return
	}
	m.analyzerFailures.WithLabelValues(analyzer).Inc()
}

// AlertCreated records a raised alert
func (m *Metrics) AlertCreated(alertType string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(alertType).Inc()
}

// DegradedCheck records a safe-default answer
func (m *Metrics) DegradedCheck() {
	if m == nil {
		return
	}
	m.degradedChecks.Inc()
}

// IPRefresh records the outcome of an IP intelligence refresh
func (m *Metrics) IPRefresh(outcome string) {
	if m == nil {
		return
	}
	m.ipRefreshes.WithLabelValues(outcome).Inc()
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Quota check outcomes.
const (
	OutcomeAllowed  = "allowed"
	OutcomeExceeded = "exceeded"
	OutcomeError    = "error"
)

// QuotaMetrics counts enforcement decisions and published quota alerts.
type QuotaMetrics struct {
	checks *prometheus.CounterVec
	alerts *prometheus.CounterVec
}

// NewQuotaMetrics registers the quota metrics on the provided registerer.
func NewQuotaMetrics(reg prometheus.Registerer) *QuotaMetrics {
	if reg == nil {
		return &QuotaMetrics{}
	}
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_checks_total",
		Help:      "Quota checks by key and outcome.",
	}, []string{"quota_key", "outcome"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_alerts_total",
		Help:      "Quota threshold alerts published by metric and severity.",
	}, []string{"metric_key", "severity"})
	reg.MustRegister(checks, alerts)
	return &QuotaMetrics{checks: checks, alerts: alerts}
}

// ObserveCheck records one enforcement outcome.
func (q *QuotaMetrics) ObserveCheck(quotaKey, outcome string) {
	if q == nil || q.checks == nil {
		return
	}
	q.checks.WithLabelValues(normalizeLabel(quotaKey), normalizeLabel(outcome)).Inc()
}

// ObserveAlert records one published threshold alert.
func (q *QuotaMetrics) ObserveAlert(metricKey, severity string) {
	if q == nil || q.alerts == nil {
		return
	}
	q.alerts.WithLabelValues(normalizeLabel(metricKey), normalizeLabel(severity)).Inc()
}

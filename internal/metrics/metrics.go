package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the operator-facing counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	AuthzDecisions       *prometheus.CounterVec
	AuditWriteFailures   prometheus.Counter
	NotificationFailures *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coup",
			Name:      "authz_decisions_total",
			Help:      "Authorization decisions by capability, outcome and rule or reason.",
		}, []string{"capability", "outcome", "detail"}),
		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coup",
			Name:      "admin_log_write_failures_total",
			Help:      "Admin log entries that could not be written after the mutation committed.",
		}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coup",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be stored or published.",
		}, []string{"stage"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coup",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coup",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.AuthzDecisions, m.AuditWriteFailures, m.NotificationFailures, m.HTTPRequests, m.HTTPDuration)
	return m
}

func (m *Metrics) ObserveDecision(capability string, allowed bool, detail string) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.AuthzDecisions.WithLabelValues(capability, outcome, detail).Inc()
}

func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

func (m *Metrics) NotificationFailed(stage string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

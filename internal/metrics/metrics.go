// Package metrics holds the Prometheus collectors for the server, registered
// on a dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "support_center"

// Intake outcomes.
const (
	IntakeSaved    = "saved"
	IntakeRejected = "rejected"
	IntakeFailed   = "failed"
)

// Metrics is the collector set. The zero value is not usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	intakes         *prometheus.CounterVec
	escalations     prometheus.Counter
	reportErrors    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		intakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_intakes_total",
			Help:      "Visit intake submissions by outcome.",
		}, []string{"outcome"}),
		escalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_escalations_total",
			Help:      "Visits escalated to the supervising counselor.",
		}),
		reportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_errors_total",
			Help:      "Report and console runs that ended in an error.",
		}, []string{"report"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Intake records one intake outcome, and an escalation when one happened.
func (m *Metrics) Intake(outcome string, escalated bool) {
	if m == nil {
		return
	}
	m.intakes.WithLabelValues(outcome).Inc()
	if escalated {
		m.escalations.Inc()
	}
}

// ReportError counts a failed report run. Use "console" for ad hoc queries.
func (m *Metrics) ReportError(report string) {
	if m == nil {
		return
	}
	m.reportErrors.WithLabelValues(report).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

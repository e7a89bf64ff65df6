// Package metrics owns the Prometheus collectors for the server and the
// export worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carteira/internal/core"
)

const namespace = "carteira"

// Metrics uses a private registry so several instances can coexist in
// one process, as they do in tests.
type Metrics struct {
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	transactions    *prometheus.CounterVec
	reports         prometheus.Counter
	rejections      *prometheus.CounterVec
	recoveries      *prometheus.CounterVec
	exports         *prometheus.CounterVec
	logins          *prometheus.CounterVec
	blocked         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests by route and status.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_recorded_total",
				Help:      "Transactions recorded by category.",
			},
			[]string{"category"},
		),
		reports: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_submitted_total",
				Help:      "Reports archived.",
			},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_rejected_total",
				Help:      "Submissions refused by a precondition.",
			},
			[]string{"reason"},
		),
		recoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_recoveries_total",
				Help:      "Corrupt records set aside and replaced by defaults.",
			},
			[]string{"kind"},
		),
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_exports_total",
				Help:      "Report exports by outcome.",
			},
			[]string{"outcome"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		blocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_blocked_total",
				Help:      "Requests refused before reaching a handler.",
			},
			[]string{"reason"},
		),
	}
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route, statusClass(status)).Observe(d.Seconds())
}

func (m *Metrics) TransactionRecorded(c core.Category) {
	m.transactions.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) ReportSubmitted() { m.reports.Inc() }

func (m *Metrics) SubmissionRejected(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

// StorageRecovered matches storage.RecoveryFunc; the user is not used as
// a label to keep cardinality bounded.
func (m *Metrics) StorageRecovered(_ string, kind string) {
	m.recoveries.WithLabelValues(kind).Inc()
}

func (m *Metrics) ReportExported(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.exports.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Login(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// RequestBlocked counts a request turned away as suspicious or rate limited.
func (m *Metrics) RequestBlocked(reason string) {
	m.blocked.WithLabelValues(reason).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}

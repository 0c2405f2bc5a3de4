// Package metrics exposes Prometheus instrumentation for job submission and
// task polling.
//
// Collectors are registered on a caller-supplied registry rather than the
// global default so several clients (and tests) can coexist. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the cryptolab collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	polls           *prometheus.CounterVec
	jobsFinished    *prometheus.CounterVec
	activeSessions  *prometheus.GaugeVec
	tokenClears     prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptolab_backend_requests_total",
				Help: "Backend HTTP requests, labeled by operation and status code.",
			},
			[]string{"op", "code"}, // code: HTTP status, or "error" on transport failure
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptolab_backend_request_duration_seconds",
				Help:    "Backend HTTP request latency.",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptolab_job_submissions_total",
				Help: "Job submissions, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"}, // 'accepted', 'rejected', 'error'
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptolab_task_polls_total",
				Help: "Status polls, labeled by kind and observed task status.",
			},
			[]string{"kind", "status"},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptolab_jobs_finished_total",
				Help: "Polling sessions that ended, labeled by kind and result.",
			},
			[]string{"kind", "result"}, // 'success', 'failure', 'poll_error'
		),
		activeSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptolab_active_poll_sessions",
				Help: "Polling sessions currently running.",
			},
			[]string{"kind"},
		),
		tokenClears: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cryptolab_token_clears_total",
				Help: "Stored tokens cleared after a 401 response.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.requestsTotal,
			m.requestDuration,
			m.submissions,
			m.polls,
			m.jobsFinished,
			m.activeSessions,
			m.tokenClears,
		)
	}
	return m
}

// ObserveRequest records one backend round trip. code is zero when no
// response was received.
func (m *Metrics) ObserveRequest(op string, code int, latency time.Duration) {
	if m == nil {
		return
	}
	c := "error"
	if code > 0 {
		c = strconv.Itoa(code)
	}
	m.requestsTotal.WithLabelValues(norm(op), c).Inc()
	m.requestDuration.WithLabelValues(norm(op)).Observe(latency.Seconds())
}

// IncSubmission records a submission outcome.
func (m *Metrics) IncSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

// IncPoll records a decoded poll snapshot.
func (m *Metrics) IncPoll(kind, status string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(norm(kind), norm(status)).Inc()
}

// IncFinished records how a polling session ended.
func (m *Metrics) IncFinished(kind, result string) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(norm(kind), norm(result)).Inc()
}

// SessionStarted increments the active session gauge and returns a func
// that decrements it.
func (m *Metrics) SessionStarted(kind string) (done func()) {
	if m == nil {
		return func() {}
	}
	g := m.activeSessions.WithLabelValues(norm(kind))
	g.Inc()
	return g.Dec
}

// IncTokenClear records a token cleared after 401.
func (m *Metrics) IncTokenClear() {
	if m == nil {
		return
	}
	m.tokenClears.Inc()
}

// norm keeps label values bounded and readable.
func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

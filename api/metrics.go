package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the API client.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	MembersFetchedTotal prometheus.Counter
	PagesFetchedTotal   prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "congress_api_requests_total",
			Help: "Total HTTP requests issued to the Congress.gov API.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "congress_api_request_duration_seconds",
			Help:    "HTTP request latency for Congress.gov API calls.",
			Buckets: prometheus.DefBuckets,
		},
	)
	membersFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "congress_api_members_fetched_total",
			Help: "Total number of member records parsed from API pages.",
		},
	)
	pagesFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "congress_api_pages_fetched_total",
			Help: "Total number of result pages fetched.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "congress_api_errors_total",
			Help: "Total number of API client errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, membersFetched, pagesFetched, errorsTotal)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		MembersFetchedTotal: membersFetched,
		PagesFetchedTotal:   pagesFetched,
		ErrorsTotal:         errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddMembers increments the fetched members counter.
func (m *Metrics) AddMembers(n int) {
	if m == nil {
		return
	}
	m.MembersFetchedTotal.Add(float64(n))
}

// IncPages increments the fetched pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

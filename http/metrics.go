package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sagarc03/stowfront"
)

const metricsNamespace = "stowfront"

// Metrics holds the front's prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	requests           *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	credentialFailures prometheus.Counter
	backendDuration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Requests served, by method and status code.",
		}, []string{"method", "code"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "response_cache_lookups_total",
			Help:      "Response cache lookups, by result (hit, miss, bypass, error).",
		}, []string{"result"}),
		credentialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "credential_failures_total",
			Help:      "Requests answered with an error because no credential could be obtained.",
		}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of backend listing and download calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
	}

	reg.MustRegister(m.requests, m.cacheLookups, m.credentialFailures, m.backendDuration)
	return m
}

func (m *Metrics) observeRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) cacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) credentialFailure() {
	if m == nil {
		return
	}
	m.credentialFailures.Inc()
}

func (m *Metrics) observeBackend(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(op, backendOutcome(err)).Observe(time.Since(start).Seconds())
}

func backendOutcome(err error) string {
	var be *stowfront.BackendError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &be):
		return strconv.Itoa(be.StatusCode)
	case errors.Is(err, stowfront.ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the HTTP, auth and API layers report to.
type Recorder interface {
	ObserveRequest(method, route string, status int, d time.Duration)
	RecordVerificationFailure(kind string)
	RecordKeyFetch(ok bool)
	RecordOperation(operation, outcome string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	authFailures *prometheus.CounterVec
	keyFetches   *prometheus.CounterVec
	operations   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookdash_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookdash_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookdash_auth_failures_total",
			Help: "Rejected credentials by reason.",
		}, []string{"reason"}),
		keyFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookdash_jwks_fetches_total",
			Help: "Signing key set fetches by result.",
		}, []string{"result"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookdash_book_operations_total",
			Help: "Book API operations by name and outcome.",
		}, []string{"operation", "outcome"}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.authFailures,
		c.keyFetches,
		c.operations,
	)

	return c
}

func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordVerificationFailure(kind string) {
	c.authFailures.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordKeyFetch(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.keyFetches.WithLabelValues(result).Inc()
}

// RecordOperation counts one API operation; outcome is "ok" or an error code.
func (c *Collector) RecordOperation(operation, outcome string) {
	c.operations.WithLabelValues(operation, outcome).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) RecordVerificationFailure(string)                  {}
func (Nop) RecordKeyFetch(bool)                               {}
func (Nop) RecordOperation(string, string)                    {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

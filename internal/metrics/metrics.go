// Package metrics holds the Prometheus collectors for the storefront.
//
// All recording methods are safe on a nil *Metrics so components can be built without
// instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics groups the collectors registered for one server instance
type Metrics struct {
	gatherer prometheus.Gatherer

	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	catalogFetches  *prometheus.CounterVec
	signingFailures *prometheus.CounterVec
	orders          *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		gatherer: reg,
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		catalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "fetches_total",
			Help:      "Catalog resolutions by outcome.",
		}, []string{"result"}),
		signingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "failures_total",
			Help:      "Signed URLs that could not be issued.",
		}, []string{"container"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Order intake attempts by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.catalogFetches,
		m.signingFailures,
		m.orders,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementInFlight() {
	if m == nil {
		return
	}
	m.httpInFlight.Inc()
}

func (m *Metrics) DecrementInFlight() {
	if m == nil {
		return
	}
	m.httpInFlight.Dec()
}

// RecordHTTPRequest records one completed request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCatalogFetch counts a catalog resolution; result is "ok", "fetch_error" or "parse_error"
func (m *Metrics) RecordCatalogFetch(result string) {
	if m == nil {
		return
	}
	m.catalogFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSigningFailure(container string) {
	if m == nil {
		return
	}
	m.signingFailures.WithLabelValues(container).Inc()
}

// RecordOrder counts an order attempt; result is "submitted", "not_found", "catalog_error" or "queue_error"
func (m *Metrics) RecordOrder(result string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(result).Inc()
}

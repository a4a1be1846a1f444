// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is what the realtime hub and the HTTP layer report to.
type MetricsCollector interface {
	RecordClientConnected(transport string)
	RecordClientDisconnected(transport string)
	RecordEventDelivered(event string)
	RecordEventDropped(event string)
	RecordRelayError()
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// Collector implements MetricsCollector on Prometheus.
type Collector struct {
	clients        *prometheus.GaugeVec
	delivered      *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	relayErrors    prometheus.Counter
	httpRequests   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mentorbridge_realtime_clients",
			Help: "Currently connected realtime clients",
		}, []string{"transport"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentorbridge_events_delivered_total",
			Help: "Realtime events handed to a client queue",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentorbridge_events_dropped_total",
			Help: "Realtime events dropped because a client queue was full",
		}, []string{"event"}),
		relayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mentorbridge_relay_errors_total",
			Help: "Failed publishes to the Redis relay",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentorbridge_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentorbridge_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.clients,
		c.delivered,
		c.dropped,
		c.relayErrors,
		c.httpRequests,
		c.requestLatency,
	)

	return c
}

func (c *Collector) RecordClientConnected(transport string) {
	c.clients.WithLabelValues(transport).Inc()
}

func (c *Collector) RecordClientDisconnected(transport string) {
	c.clients.WithLabelValues(transport).Dec()
}

func (c *Collector) RecordEventDelivered(event string) {
	c.delivered.WithLabelValues(event).Inc()
}

func (c *Collector) RecordEventDropped(event string) {
	c.dropped.WithLabelValues(event).Inc()
}

func (c *Collector) RecordRelayError() {
	c.relayErrors.Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Nop discards everything. It is the default when no collector is configured.
type Nop struct{}

func (Nop) RecordClientConnected(string)                         {}
func (Nop) RecordClientDisconnected(string)                      {}
func (Nop) RecordEventDelivered(string)                          {}
func (Nop) RecordEventDropped(string)                            {}
func (Nop) RecordRelayError()                                    {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

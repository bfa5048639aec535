package client

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes requests sent by a Client
type Metrics interface {
	// Request is one completed attempt; status is 0 when no response arrived
	Request(method string, status int, elapsed time.Duration)

	// Retry is a retry about to be scheduled after the given attempt
	Retry(method string, attempt int)
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) Request(string, int, time.Duration) {}
func (NoopMetrics) Retry(string, int)                  {}

// PromMetrics exports request counts, latencies and retries to Prometheus
type PromMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewPromMetrics registers client metrics with reg, or with
// prometheus.DefaultRegisterer when reg is nil.
func NewPromMetrics(reg prometheus.Registerer, namespace string) *PromMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PromMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "HTTP attempts by method and status",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "HTTP attempt latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "retries_total",
			Help:      "Retries scheduled by the transport retry policy",
		}, []string{"method"}),
	}
	reg.MustRegister(m.requests, m.latency, m.retries)
	return m
}

func (m *PromMetrics) Request(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, statusLabel(status)).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *PromMetrics) Retry(method string, _ int) {
	m.retries.WithLabelValues(method).Inc()
}

func statusLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

var (
	_ Metrics = NoopMetrics{}
	_ Metrics = (*PromMetrics)(nil)
)

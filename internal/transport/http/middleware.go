package http

import (
	"bytes"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// Middleware wraps a handler
type Middleware func(http.Handler) http.Handler

// statusRecorder captures the status code and, when body is set, the
// response body
type statusRecorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func newStatusRecorder(w http.ResponseWriter, captureBody bool) *statusRecorder {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	if captureBody {
		rec.body = &bytes.Buffer{}
	}
	return rec
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.body != nil {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

// LoggingMiddleware logs requests, request bodies of writes, and the body
// of error responses
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.Printf("[HTTP REQUEST] %s %s from %s", r.Method, r.URL.RequestURI(), r.RemoteAddr)
		if fixture := r.Header.Get(client.HeaderFixture); fixture != "" {
			log.Printf("[HTTP REQUEST] Fixture: %s", fixture)
		}

		if r.Method == http.MethodPost && r.Body != nil {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				log.Printf("[HTTP REQUEST] Error reading request body: %v", err)
			} else {
				r.Body = io.NopCloser(bytes.NewReader(body))
				if len(body) > 0 {
					log.Printf("[HTTP REQUEST] Body: %s", body)
				}
			}
		}

		rec := newStatusRecorder(w, true)
		next.ServeHTTP(rec, r)

		log.Printf("[HTTP RESPONSE] %s %s -> %d in %v", r.Method, r.URL.Path, rec.status, time.Since(start))
		if rec.status >= 400 && rec.body.Len() > 0 {
			log.Printf("[HTTP RESPONSE] Error body: %s", rec.body.String())
		}
	})
}

// serverMetrics counts and times served requests by route
type serverMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsfeed",
			Subsystem: "http_server",
			Name:      "requests_total",
			Help:      "Requests served by route and status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "newsfeed",
			Subsystem: "http_server",
			Name:      "request_duration_seconds",
			Help:      "Request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

// Middleware records every request. It reads the pattern the mux matched,
// so it must wrap the mux directly.
func (m *serverMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w, false)
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// TracingMiddleware continues the caller's trace from W3C headers and
// wraps the request in a server span
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/joshdurbin/newsfeed/internal/transport/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := newStatusRecorder(w, false)
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
	})
}

// FaultInjector fails a fraction of requests and delays the rest
type FaultInjector struct {
	Rate    float64
	Status  int
	Latency time.Duration

	// Float returns a value in [0,1); nil uses math/rand/v2
	Float func() float64
}

// Middleware applies the configured faults; /metrics is never affected
func (f FaultInjector) Middleware(next http.Handler) http.Handler {
	if f.Rate <= 0 && f.Latency <= 0 {
		return next
	}
	if f.Float == nil {
		f.Float = rand.Float64
	}
	if f.Status == 0 {
		f.Status = http.StatusServiceUnavailable
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		if f.Latency > 0 {
			t := time.NewTimer(f.Latency)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}

		if f.Rate > 0 && f.Float() < f.Rate {
			log.Printf("[WARN] Injected failure for %s %s", r.Method, r.URL.Path)
			http.Error(w, http.StatusText(f.Status), f.Status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

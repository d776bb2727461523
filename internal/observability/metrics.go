package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the HTTP metrics of the API.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
}

// API surfaces used as the "surface" label.
const (
	SurfaceAdmin    = "admin"
	SurfaceRetailer = "retailer"
	SurfaceOps      = "ops"
	SurfaceOther    = "other"
)

// NewMetrics builds a private registry with the request collectors and the Go runtime collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "b2b_http_requests_total",
		Help: "HTTP requests by API surface, route pattern and status code.",
	}, []string{"surface", "route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "b2b_http_request_duration_seconds",
		Help:    "HTTP request latency by API surface and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"surface", "route"})
	inFlight := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "b2b_http_requests_in_flight",
		Help: "HTTP requests currently being served by API surface.",
	}, []string{"surface"})
	registry.MustRegister(requests, duration, inFlight, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		inFlight:        inFlight,
	}
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every request under its API surface and chi route
// pattern. Scrapes of /metrics itself are not counted.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		surface := Surface(r.URL.Path)
		gauge := m.inFlight.WithLabelValues(surface)
		gauge.Inc()
		defer gauge.Dec()

		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(surface, route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(surface, route).Observe(time.Since(start).Seconds())
	})
}

// Surface maps a request path onto the API it belongs to.
func Surface(path string) string {
	switch {
	case hasSegmentPrefix(path, "/api/admin"):
		return SurfaceAdmin
	case hasSegmentPrefix(path, "/api/retailer"):
		return SurfaceRetailer
	case hasSegmentPrefix(path, "/healthz"), hasSegmentPrefix(path, "/jobs"), hasSegmentPrefix(path, "/report"):
		return SurfaceOps
	default:
		return SurfaceOther
	}
}

func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

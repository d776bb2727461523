package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-b2b/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsExposeJobCollectors(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("summary:warmup").End(errors.New("boom"))
	jobs.ObserveDelivery("sent")

	body := scrape(t, metrics)
	assert.Contains(t, body, `b2b_jobs_total{job="summary:warmup",status="failure"} 1`)
	assert.Contains(t, body, `b2b_notification_deliveries_total{outcome="sent"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/retailer/cart")
	req := httptest.NewRequest(http.MethodGet, "/api/retailer/cart", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `b2b_http_requests_total{code="418",route="/api/retailer/cart",surface="retailer"} 1`)
	assert.Contains(t, body, `b2b_http_request_duration_seconds_bucket{route="/api/retailer/cart",surface="retailer"`)
	assert.Contains(t, body, `b2b_http_requests_in_flight{surface="retailer"} 0`)
}

func TestMetricsMiddlewareSkipsScrapes(t *testing.T) {
	metrics := NewMetrics()
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/api/admin/orders", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/metrics", "/metrics", "/api/admin/orders"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	body := scrape(t, metrics)
	assert.Contains(t, body, `b2b_http_requests_total{code="200",route="/api/admin/orders",surface="admin"} 1`)
	assert.NotContains(t, body, `route="/metrics"`)
}

func TestSurface(t *testing.T) {
	cases := map[string]string{
		"/api/admin":           SurfaceAdmin,
		"/api/admin/orders/7":  SurfaceAdmin,
		"/api/retailer/cart":   SurfaceRetailer,
		"/api/retailers":       SurfaceOther,
		"/healthz":             SurfaceOps,
		"/jobs/summary/warmup": SurfaceOps,
		"/report/ping":         SurfaceOps,
		"/favicon.ico":         SurfaceOther,
	}
	for path, want := range cases {
		assert.Equal(t, want, Surface(path), path)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

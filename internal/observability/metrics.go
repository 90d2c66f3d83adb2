package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ordersClosed      *prometheus.CounterVec
	clientsLiquidated prometheus.Counter
	sweepFailures     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ronda_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ronda_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	ordersClosed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ronda_orders_closed_total",
		Help: "Closed orders partitioned by closure type.",
	}, []string{"closure_type"})
	clientsLiquidated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ronda_clients_liquidated_total",
		Help: "Clients liquidated for unsettled grace-period debt.",
	})
	sweepFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ronda_sweep_failures_total",
		Help: "Per-order failures during scheduled sweeps.",
	}, []string{"sweep"})
	registry.MustRegister(requests, duration, ordersClosed, clientsLiquidated, sweepFailures)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		ordersClosed:      ordersClosed,
		clientsLiquidated: clientsLiquidated,
		sweepFailures:     sweepFailures,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collector registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AddOrdersClosed counts closed orders by closure type.
func (m *Metrics) AddOrdersClosed(closureType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ordersClosed.WithLabelValues(closureType).Add(float64(n))
}

// AddClientsLiquidated counts liquidated clients.
func (m *Metrics) AddClientsLiquidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.clientsLiquidated.Add(float64(n))
}

// AddSweepFailures counts per-order failures of a scheduled sweep.
func (m *Metrics) AddSweepFailures(sweep string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepFailures.WithLabelValues(sweep).Add(float64(n))
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

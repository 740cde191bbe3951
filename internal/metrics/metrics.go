// Package metrics holds the Prometheus collectors exposed on /metrics.
//
// Every method is safe on a nil *Metrics, so components built without
// metrics (most unit tests) need no special casing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeConnections   prometheus.Gauge
	storySweeps         *prometheus.CounterVec
	storiesDeactivated  prometheus.Counter
	notifications       *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_connections",
				Help: "Number of requests currently being served",
			},
		),
		storySweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "story_sweeps_total",
				Help: "Story expiry sweeps by result",
			},
			[]string{"result"},
		),
		storiesDeactivated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stories_deactivated_total",
				Help: "Stories flipped to inactive by the sweep",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Notifications emitted by type and result",
			},
			[]string{"type", "result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.activeConnections,
		m.storySweeps,
		m.storiesDeactivated,
		m.notifications,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests that gather collected values.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count, latency and in-flight requests. Routes
// are labelled by chi's route pattern ("/api/posts/{id}"), not the raw path,
// so ids do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m.activeConnections.Inc()
		defer m.activeConnections.Dec()

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// SweepSucceeded records a completed sweep and how many stories it flipped.
func (m *Metrics) SweepSucceeded(deactivated int64) {
	if m == nil {
		return
	}
	m.storySweeps.WithLabelValues("ok").Inc()
	m.storiesDeactivated.Add(float64(deactivated))
}

func (m *Metrics) SweepFailed() {
	if m == nil {
		return
	}
	m.storySweeps.WithLabelValues("error").Inc()
}

// Notification records one notification attempt.
func (m *Metrics) Notification(notificationType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(notificationType, result).Inc()
}

package obs

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

// Metrics implements ports.Metrics on prometheus collectors and carries the HTTP
// request instrumentation.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	permissionChecks *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	sequenceRetries  prometheus.Counter
	livePushes       *prometheus.CounterVec
	outboxDispatches *prometheus.CounterVec
}

var _ ports.Metrics = (*Metrics)(nil)

// NewMetrics registers every collector on reg. A nil reg gets a private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		permissionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opm_permission_checks_total",
			Help: "Permission checks by resource, action and outcome.",
		}, []string{"resource", "action", "allowed"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opm_notifications_recorded_total",
			Help: "Notifications committed by type.",
		}, []string{"type"}),
		sequenceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opm_order_sequence_retries_total",
			Help: "Order number allocations retried after a duplicate.",
		}),
		livePushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opm_live_pushes_total",
			Help: "Live pushes by result.",
		}, []string{"result"}),
		outboxDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opm_outbox_dispatch_total",
			Help: "Outbox publish attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.permissionChecks, m.notifications, m.sequenceRetries, m.livePushes, m.outboxDispatches,
	)
	return m
}

func (m *Metrics) PermissionChecked(resource domain.Resource, action domain.Action, allowed bool) {
	m.permissionChecks.WithLabelValues(string(resource), string(action), strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) NotificationRecorded(kind domain.NotificationType) {
	m.notifications.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) SequenceRetried() {
	m.sequenceRetries.Inc()
}

func (m *Metrics) LivePush(result string) {
	m.livePushes.WithLabelValues(result).Inc()
}

func (m *Metrics) OutboxDispatched(result string) {
	m.outboxDispatches.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument records RPS, latency and in-flight requests. The path label is the chi
// route pattern when one matched.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

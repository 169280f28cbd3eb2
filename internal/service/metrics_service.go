package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the message dispatcher, and the scheduler passes.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	passErrors      *prometheus.CounterVec
	resolutionTotal *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService(sessionCount func() int) *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_dispatch_total",
		Help: "Outbound messages by kind and outcome",
	}, []string{"kind", "outcome"})

	passDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_pass_duration_seconds",
		Help:    "Duration of scheduler passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	passErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_pass_errors_total",
		Help: "Per-item errors inside scheduler passes",
	}, []string{"pass"})

	resolutionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_resolutions_total",
		Help: "Attendance records resolved, by final status",
	}, []string{"status", "auto"})

	openSessions := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "bot_open_sessions",
		Help: "Interactive flows currently open",
	}, func() float64 {
		if sessionCount == nil {
			return 0
		}
		return float64(sessionCount())
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dispatchTotal, passDuration, passErrors, resolutionTotal, openSessions, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		dispatchTotal:   dispatchTotal,
		passDuration:    passDuration,
		passErrors:      passErrors,
		resolutionTotal: resolutionTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDispatch records one outbound send attempt.
func (m *MetricsService) ObserveDispatch(kind string, success bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !success {
		outcome = "failed"
	}
	m.dispatchTotal.WithLabelValues(kind, outcome).Inc()
}

// ObservePass records the duration of one scheduler pass.
func (m *MetricsService) ObservePass(pass string, duration time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(pass).Observe(duration.Seconds())
}

// ObservePassError counts a per-item failure inside a pass.
func (m *MetricsService) ObservePassError(pass string) {
	if m == nil {
		return
	}
	m.passErrors.WithLabelValues(pass).Inc()
}

// ObserveResolution counts a finalized attendance record.
func (m *MetricsService) ObserveResolution(status string, auto bool) {
	if m == nil {
		return
	}
	m.resolutionTotal.WithLabelValues(status, fmt.Sprintf("%t", auto)).Inc()
}

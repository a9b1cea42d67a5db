package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpDurationSeconds  *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	gradingOpsTotal      *prometheus.CounterVec
	gradeCacheTotal      *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	sseClientsActive     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradingOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_operations_total",
			Help: "Grade mutations by operation and outcome.",
		}, []string{"operation", "outcome"})

		gradeCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "course_grade_cache_total",
			Help: "Course grade cache lookups by result.",
		}, []string{"result"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications delivered to subscribers by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sse_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpDurationSeconds,
			httpErrorsTotal,
			gradingOpsTotal,
			gradeCacheTotal,
			notificationsTotal,
			sseClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPDuration exposes the latency histogram.
func HTTPDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpDurationSeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingOperations counts grade and un-grade attempts.
func GradingOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOpsTotal
}

// GradeCache counts course grade cache hits and misses.
func GradeCache() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeCacheTotal
}

// NotificationsPublishedTotal counts notifications pushed to local subscribers.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SSEClientsActive tracks open notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

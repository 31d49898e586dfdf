// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"limiter"},
	)

	// Storage Metrics
	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "progress_storage_duration_seconds",
			Help:    "Duration of progress store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_storage_errors_total",
			Help: "Total number of failed progress store operations",
		},
		[]string{"operation"},
	)

	// Progress Metrics
	ProgressUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_updates_total",
			Help: "Total number of accepted session status updates",
		},
		[]string{"status"},
	)

	ProgressRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_updates_rejected_total",
			Help: "Total number of session updates rejected by validation",
		},
		[]string{"field"},
	)

	LessonsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lessons_completed_total",
			Help: "Total number of writes that completed the fifth session of a lesson",
		},
		[]string{"lesson_id"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"event_type"},
	)

	EventHandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_handler_errors_total",
			Help: "Total number of failed event handler executions",
		},
		[]string{"event_type"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStorageOperation records the duration and outcome of a store call.
func RecordStorageOperation(operation string, duration time.Duration, err error) {
	StorageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StorageErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRateLimitHit counts a rejected request.
func RecordRateLimitHit(limiter string) {
	APIRateLimitHits.WithLabelValues(limiter).Inc()
}

// RecordProgressUpdate counts an accepted status update.
func RecordProgressUpdate(status string) {
	ProgressUpdates.WithLabelValues(status).Inc()
}

// RecordProgressRejected counts a validation rejection by field.
func RecordProgressRejected(field string) {
	if field == "" {
		field = "unknown"
	}
	ProgressRejected.WithLabelValues(field).Inc()
}

// RecordLessonCompleted counts a lesson reaching five completed sessions.
func RecordLessonCompleted(lessonID int) {
	LessonsCompleted.WithLabelValues(strconv.Itoa(lessonID)).Inc()
}

// RecordEventPublished counts a published domain event.
func RecordEventPublished(eventType string) {
	EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventHandlerError counts a failed event handler.
func RecordEventHandlerError(eventType string) {
	EventHandlerErrors.WithLabelValues(eventType).Inc()
}

// RecordBreakerTransition records a circuit breaker state change. state is
// 0 for closed, 1 for half-open and 2 for open.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

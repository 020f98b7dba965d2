package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantonboard_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenantonboard_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	stageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantonboard_stage_transitions_total",
		Help: "Count of prospectus stage transitions by target stage and result",
	}, []string{"to", "result"})

	prospectusesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantonboard_prospectuses_created_total",
		Help: "Count of prospectus creation attempts by result",
	}, []string{"result"})

	activationsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantonboard_activations_issued_total",
		Help: "Count of identity activation tokens issued by result",
	}, []string{"result"})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantonboard_verifications_total",
		Help: "Count of identity verification attempts by result",
	}, []string{"result"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantonboard_notifications_total",
		Help: "Count of outbound notifications by result",
	}, []string{"result"})

	notificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tenantonboard_notification_duration_seconds",
		Help:    "Duration of outbound notification delivery including retries",
		Buckets: prometheus.DefBuckets,
	})

	backgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantonboard_background_tasks_total",
		Help: "Count of background tasks by name and result",
	}, []string{"task", "result"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tenantonboard_task_queue_depth",
		Help: "Number of background tasks waiting to run",
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tenantonboard_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"dependency"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveTransition counts a stage transition attempt toward stage to.
func ObserveTransition(to, result string) {
	stageTransitions.WithLabelValues(to, result).Inc()
}

// ObserveCreate counts a creation attempt.
func ObserveCreate(result string) {
	prospectusesCreated.WithLabelValues(result).Inc()
}

// ObserveActivation counts an activation issuance.
func ObserveActivation(result string) {
	activationsIssued.WithLabelValues(result).Inc()
}

// ObserveVerification counts a verification attempt.
func ObserveVerification(result string) {
	verifications.WithLabelValues(result).Inc()
}

// ObserveNotification records a delivery outcome and how long it took.
func ObserveNotification(result string, duration time.Duration) {
	notifications.WithLabelValues(result).Inc()
	notificationDuration.Observe(duration.Seconds())
}

// ObserveTask counts a finished or dropped background task.
func ObserveTask(task, result string) {
	backgroundTasks.WithLabelValues(task, result).Inc()
}

// SetQueueDepth reports the number of pending background tasks.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// SetBreakerState records the state of a dependency's circuit breaker.
func SetBreakerState(dependency string, state int) {
	breakerState.WithLabelValues(dependency).Set(float64(state))
}

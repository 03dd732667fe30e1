package aegis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricRateLimited counts admissions denied by the sliding window.
	metricRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_rate_limited_total",
			Help: "Admissions denied by the sliding-window rate limiter",
		},
		[]string{"pipeline"},
	)

	// metricBulkheadActive tracks in-flight calls per pool.
	metricBulkheadActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_bulkhead_active",
			Help: "Calls currently holding a bulkhead slot",
		},
		[]string{"pipeline", "pool"},
	)

	// metricBulkheadQueueDepth tracks the pending-call queue per pool.
	metricBulkheadQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_bulkhead_queue_depth",
			Help: "Calls waiting for a bulkhead slot",
		},
		[]string{"pipeline", "pool"},
	)

	// metricBulkheadRejections counts bulkhead rejections by reason.
	metricBulkheadRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_bulkhead_rejections_total",
			Help: "Calls rejected by a bulkhead, by reason",
		},
		[]string{"pipeline", "pool", "reason"},
	)

	// metricCircuitState exposes the breaker state as a gauge
	// (0=closed, 1=open, 2=half_open).
	metricCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"pipeline"},
	)

	// metricCircuitTransitions counts breaker state changes.
	metricCircuitTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_circuit_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"pipeline", "from", "to"},
	)

	// metricCircuitRejected counts calls rejected by an open breaker.
	metricCircuitRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_circuit_rejected_total",
			Help: "Calls rejected by an open circuit breaker",
		},
		[]string{"pipeline"},
	)

	// metricRetries counts retry attempts.
	metricRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_retries_total",
			Help: "Retry attempts after a failed call",
		},
		[]string{"pipeline"},
	)

	// metricTimeouts counts per-attempt timeouts.
	metricTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_timeouts_total",
			Help: "Call attempts cancelled by the per-attempt timeout",
		},
		[]string{"pipeline"},
	)

	// metricFallbacks counts calls answered by the fallback.
	metricFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_fallbacks_total",
			Help: "Calls answered by the fallback after a pipeline failure",
		},
		[]string{"pipeline"},
	)
)

// MetricsHooks returns a [Hooks] value that publishes every control
// lifecycle event to the package-level Prometheus collectors, labelled with
// the given pipeline name. Stack it with user callbacks and [LoggingHooks]
// via [CombineHooks].
func MetricsHooks(pipeline string) *Hooks {
	return &Hooks{
		OnRateLimited: func(time.Duration) {
			metricRateLimited.WithLabelValues(pipeline).Inc()
		},
		OnBulkheadQueued: func(pool string, depth int) {
			metricBulkheadQueueDepth.
				WithLabelValues(pipeline, pool).
				Set(float64(depth))
		},
		OnBulkheadFull: func(pool string) {
			metricBulkheadRejections.
				WithLabelValues(pipeline, pool, "full").
				Inc()
		},
		OnBulkheadTimeout: func(pool string, _ time.Duration) {
			metricBulkheadRejections.
				WithLabelValues(pipeline, pool, "timeout").
				Inc()
		},
		OnBulkheadAcquired: func(pool string) {
			metricBulkheadActive.WithLabelValues(pipeline, pool).Inc()
		},
		OnBulkheadReleased: func(pool string) {
			metricBulkheadActive.WithLabelValues(pipeline, pool).Dec()
		},
		OnCircuitChange: func(from, to State) {
			metricCircuitTransitions.
				WithLabelValues(pipeline, from.String(), to.String()).
				Inc()
			metricCircuitState.WithLabelValues(pipeline).Set(float64(to))
		},
		OnCircuitRejected: func() {
			metricCircuitRejected.WithLabelValues(pipeline).Inc()
		},
		OnRetry: func(int, time.Duration, error) {
			metricRetries.WithLabelValues(pipeline).Inc()
		},
		OnTimeout: func() {
			metricTimeouts.WithLabelValues(pipeline).Inc()
		},
		OnFallbackUsed: func(error) {
			metricFallbacks.WithLabelValues(pipeline).Inc()
		},
	}
}

package aegis

import "time"

// Point-in-time snapshots of the controls. All snapshots are produced under
// the owning component's lock and are safe to retain; durations marshal as
// nanosecond integers.

type (
	// RateLimiterStats is a snapshot of a [RateLimiter].
	RateLimiterStats struct {
		MaxRequests int           `json:"max_requests"`
		Window      time.Duration `json:"window"`
		InWindow    int           `json:"in_window"`
		Allowed     uint64        `json:"allowed"`
		Rejected    uint64        `json:"rejected"`
	}

	// TransitionStats is one state change from a breaker's history log.
	TransitionStats struct {
		From string    `json:"from"`
		To   string    `json:"to"`
		At   time.Time `json:"at"`
	}

	// CircuitBreakerStats is a snapshot of a [CircuitBreaker].
	CircuitBreakerStats struct {
		State               string            `json:"state"`
		ConsecutiveFailures int               `json:"consecutive_failures"`
		Total               uint64            `json:"total_requests"`
		Successful          uint64            `json:"successful_requests"`
		Failed              uint64            `json:"failed_requests"`
		Rejected            uint64            `json:"rejected_requests"`
		History             []TransitionStats `json:"history,omitempty"`
	}

	// RetryStats is a snapshot of a [RetryPolicy]'s running counters.
	RetryStats struct {
		TotalAttempts      uint64 `json:"total_attempts"`
		SuccessfulRetries  uint64 `json:"successful_retries"`
		FailedAfterRetries uint64 `json:"failed_after_retries"`
	}

	// BulkheadStats is a snapshot of a [Bulkhead] pool.
	BulkheadStats struct {
		Name          string `json:"name"`
		MaxConcurrent int    `json:"max_concurrent"`
		MaxQueueSize  int    `json:"max_queue_size"`
		Current       int    `json:"current"`
		QueueDepth    int    `json:"queue_depth"`
		Admitted      uint64 `json:"admitted"`
		Queued        uint64 `json:"queued"`
		RejectedFull  uint64 `json:"rejected_full"`
		TimedOut      uint64 `json:"timed_out"`
	}

	// PipelineStats aggregates the snapshots of every control a pipeline
	// carries; absent controls are nil.
	PipelineStats struct {
		Name           string               `json:"name"`
		RateLimiter    *RateLimiterStats    `json:"rate_limiter,omitempty"`
		Bulkhead       *BulkheadStats       `json:"bulkhead,omitempty"`
		CircuitBreaker *CircuitBreakerStats `json:"circuit_breaker,omitempty"`
		Retry          *RetryStats          `json:"retry,omitempty"`
	}
)

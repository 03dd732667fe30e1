package aegis

import "time"

// Pattern: Factory Function — each preset produces a ready-made option
// bundle for a common use case, avoiding boilerplate configuration.

// StandardGuards returns the full four-control stack with the stock
// defaults: 10 admissions per 60s window, 10 concurrent calls with a queue
// of 20 and a 5s wait, a breaker opening after 5 consecutive failures with a
// 30s reset and 3 half-open probes, and 3 retries backing off from 1s
// (doubling, capped at 10s).
func StandardGuards() []any {
	return []any{
		WithRateLimit(),
		WithBulkhead(),
		WithCircuitBreaker(),
		WithRetry(),
	}
}

// AggressiveGuards returns options for latency-sensitive callers: a 2s
// per-attempt timeout, 2 retries backing off from 100ms, a breaker opening
// after 3 consecutive failures with a 15s reset, and 20 concurrent calls
// with a short queue.
func AggressiveGuards() []any {
	return []any{
		WithTimeout(2 * time.Second),
		WithRetry(
			MaxRetries(2),
			InitialDelay(100*time.Millisecond),
			MaxRetryDelay(2*time.Second),
		),
		WithCircuitBreaker(
			FailureThreshold(3),
			ResetTimeout(15*time.Second),
		),
		WithBulkhead(
			MaxConcurrent(20),
			MaxQueueSize(10),
			MaxWait(time.Second),
		),
	}
}

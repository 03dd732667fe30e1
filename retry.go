package aegis

import (
	"context"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------.

type (
	retryConfig struct {
		maxRetries   int
		initialDelay time.Duration
		multiplier   float64
		maxDelay     time.Duration
		strategy     BackoffStrategy
	}

	// RetryOption configures a retry policy.
	RetryOption func(*retryConfig)

	// RetryPolicy re-invokes a failed operation up to a bound, with growing
	// delay between attempts. Configuration is immutable after construction;
	// the running counters accumulate across calls until an explicit reset.
	//
	// Pattern: Retry with Backoff — masks transient failures; capped
	// exponential delay bounds worst-case latency while damping load on a
	// recovering dependency. Respects Permanent error classification and
	// never retries a control rejection.
	RetryPolicy struct {
		clock    Clock
		hooks    *Hooks
		cfg      retryConfig
		strategy BackoffStrategy

		totalAttempts      atomic.Uint64
		successfulRetries  atomic.Uint64
		failedAfterRetries atomic.Uint64
	}
)

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries:   3,
		initialDelay: time.Second,
		multiplier:   2,
		maxDelay:     10 * time.Second,
	}
}

// MaxRetries sets the number of re-invocations after the first attempt, so an
// operation runs at most n+1 times.
func MaxRetries(n int) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxRetries = n
	}
}

// InitialDelay sets the delay before the first retry.
func InitialDelay(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.initialDelay = d
	}
}

// BackoffMultiplier sets the geometric growth factor applied to the delay
// after each failed attempt. Must be greater than 1.
func BackoffMultiplier(f float64) RetryOption {
	return func(cfg *retryConfig) {
		cfg.multiplier = f
	}
}

// MaxRetryDelay caps the delay between attempts.
func MaxRetryDelay(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxDelay = d
	}
}

// RetryBackoff replaces the default capped exponential delay with a custom
// [BackoffStrategy]. MaxRetryDelay still caps the strategy's output.
func RetryBackoff(s BackoffStrategy) RetryOption {
	return func(cfg *retryConfig) {
		cfg.strategy = s
	}
}

// NewRetryPolicy creates a retry policy with the given options.
func NewRetryPolicy(
	clock Clock,
	hooks *Hooks,
	opts ...RetryOption,
) *RetryPolicy {
	cfg := defaultRetryConfig()
	for _, o := range opts {
		o(&cfg)
	}

	strategy := cfg.strategy
	if strategy == nil {
		strategy = ExponentialBackoff(cfg.initialDelay, cfg.multiplier)
	}

	return &RetryPolicy{
		clock:    clock,
		hooks:    hooks,
		cfg:      cfg,
		strategy: strategy,
	}
}

// retryable reports whether err may be re-attempted: explicitly permanent
// errors stop the loop, and control rejections are never retried internally
// (a per-attempt timeout is the one control outcome that is retried).
func retryable(err error) bool {
	if IsPermanent(err) {
		return false
	}

	kind := KindOf(err)

	return kind == KindNone || kind == KindTimeout
}

// Execute invokes op up to maxRetries+1 times. On success it returns
// immediately; on the final failed attempt it propagates the last error
// verbatim, so an outer circuit breaker observes the authentic downstream
// failure rather than a synthetic retry error.
func (p *RetryPolicy) Execute(
	ctx context.Context,
	op func(context.Context) error,
) error {
	attempts := p.cfg.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		p.totalAttempts.Add(1)

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.successfulRetries.Add(1)
			}

			return nil
		}

		if attempt == attempts || !retryable(err) {
			p.failedAfterRetries.Add(1)

			return err
		}

		delay := p.strategy.Delay(attempt - 1)
		if p.cfg.maxDelay > 0 && delay > p.cfg.maxDelay {
			delay = p.cfg.maxDelay
		}

		p.hooks.emitRetry(attempt, delay, err)

		if sleepErr := sleep(ctx, p.clock, delay); sleepErr != nil {
			p.failedAfterRetries.Add(1)

			return sleepErr
		}
	}
}

// Stats returns a point-in-time snapshot of the running counters.
func (p *RetryPolicy) Stats() RetryStats {
	return RetryStats{
		TotalAttempts:      p.totalAttempts.Load(),
		SuccessfulRetries:  p.successfulRetries.Load(),
		FailedAfterRetries: p.failedAfterRetries.Load(),
	}
}

// Reset zeroes the running counters.
func (p *RetryPolicy) Reset() {
	p.totalAttempts.Store(0)
	p.successfulRetries.Store(0)
	p.failedAfterRetries.Store(0)
}

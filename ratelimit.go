package aegis

import (
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------.

type (
	rateLimiterConfig struct {
		maxRequests int
		window      time.Duration
	}

	// RateLimiterOption configures a rate limiter.
	RateLimiterOption func(*rateLimiterConfig)

	// RateLimiter admits or rejects calls based on a sliding time window of
	// prior admissions. Exact-timestamp accounting: every admission is
	// recorded, entries older than the window are pruned on each call, so
	// there are no bucketing artifacts at window boundaries.
	//
	// Pattern: Sliding Window — prune, check, and append happen under one
	// lock so concurrent callers can never over-admit.
	RateLimiter struct {
		clock Clock
		hooks *Hooks
		cfg   rateLimiterConfig

		mu         sync.Mutex
		admissions []time.Time // chronological; bounded by maxRequests after pruning
		allowed    uint64
		rejected   uint64
	}
)

func defaultRateLimiterConfig() rateLimiterConfig {
	return rateLimiterConfig{
		maxRequests: 10,
		window:      time.Minute,
	}
}

// MaxRequests sets the maximum number of admissions per window.
func MaxRequests(n int) RateLimiterOption {
	return func(cfg *rateLimiterConfig) {
		cfg.maxRequests = n
	}
}

// Window sets the sliding window duration.
func Window(d time.Duration) RateLimiterOption {
	return func(cfg *rateLimiterConfig) {
		cfg.window = d
	}
}

// NewRateLimiter creates a sliding-window rate limiter with the given options.
func NewRateLimiter(
	clock Clock,
	hooks *Hooks,
	opts ...RateLimiterOption,
) *RateLimiter {
	cfg := defaultRateLimiterConfig()
	for _, o := range opts {
		o(&cfg)
	}

	return &RateLimiter{
		clock: clock,
		hooks: hooks,
		cfg:   cfg,
	}
}

// prune drops admissions older than now − window. Caller must hold mu.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.cfg.window)

	i := 0
	for i < len(rl.admissions) && !rl.admissions[i].After(cutoff) {
		i++
	}

	if i > 0 {
		rl.admissions = append(rl.admissions[:0], rl.admissions[i:]...)
	}
}

// retryAfterLocked reports how long until the oldest admission leaves the
// window, or zero when none are recorded. Caller must hold mu.
func (rl *RateLimiter) retryAfterLocked(now time.Time) time.Duration {
	if len(rl.admissions) == 0 {
		return 0
	}

	wait := rl.admissions[0].Add(rl.cfg.window).Sub(now)
	if wait < 0 {
		wait = 0
	}

	return wait
}

// TryAcquire admits the call if fewer than maxRequests admissions fall inside
// the current window, recording the admission timestamp. Rejection has no
// side effect on the window.
func (rl *RateLimiter) TryAcquire() bool {
	return rl.Acquire() == nil
}

// Acquire is TryAcquire returning a tagged rejection carrying the retry-after
// hint computed atomically with the admission decision.
func (rl *RateLimiter) Acquire() error {
	now := rl.clock.Now()

	rl.mu.Lock()
	rl.prune(now)

	if len(rl.admissions) < rl.cfg.maxRequests {
		rl.admissions = append(rl.admissions, now)
		rl.allowed++
		rl.mu.Unlock()

		return nil
	}

	rl.rejected++
	retryAfter := rl.retryAfterLocked(now)
	rl.mu.Unlock()

	rl.hooks.emitRateLimited(retryAfter)

	return newRateLimited(retryAfter)
}

// Remaining reports how many admissions the current window still allows.
func (rl *RateLimiter) Remaining() int {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(now)

	remaining := rl.cfg.maxRequests - len(rl.admissions)
	if remaining < 0 {
		remaining = 0
	}

	return remaining
}

// RetryAfter reports how long a rejected caller should wait before the next
// admission can succeed. Zero when the window has free capacity or is empty.
func (rl *RateLimiter) RetryAfter() time.Duration {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(now)

	if len(rl.admissions) < rl.cfg.maxRequests {
		return 0
	}

	return rl.retryAfterLocked(now)
}

// Saturated reports whether the current window has no capacity left.
func (rl *RateLimiter) Saturated() bool {
	return rl.Remaining() == 0
}

// Stats returns a point-in-time snapshot of the limiter.
func (rl *RateLimiter) Stats() RateLimiterStats {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(now)

	return RateLimiterStats{
		MaxRequests: rl.cfg.maxRequests,
		Window:      rl.cfg.window,
		InWindow:    len(rl.admissions),
		Allowed:     rl.allowed,
		Rejected:    rl.rejected,
	}
}

// Reset clears the admission history and all counters.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.admissions = rl.admissions[:0]
	rl.allowed = 0
	rl.rejected = 0
}

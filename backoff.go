package aegis

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy determines the delay between retry attempts.
//
// Pattern: Strategy — swap backoff algorithms without changing retry logic.
type BackoffStrategy interface {
	// Delay returns the duration to wait before the given retry attempt
	// (0-indexed: attempt 0 is the delay before the first retry).
	Delay(attempt int) time.Duration
}

// BackoffFunc adapts an ordinary function into a [BackoffStrategy], for
// ad-hoc backoff logic without defining a type.
type BackoffFunc func(attempt int) time.Duration

// Delay calls the underlying function.
func (f BackoffFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ---------------------------------------------------------------------------
// ConstantBackoff
// ---------------------------------------------------------------------------

// constantBackoff returns the same delay for every attempt.
type constantBackoff struct {
	d time.Duration
}

func (b *constantBackoff) Delay(_ int) time.Duration { return b.d }

// ConstantBackoff returns a [BackoffStrategy] that always returns the fixed
// delay d regardless of the attempt number.
func ConstantBackoff(d time.Duration) BackoffStrategy {
	return &constantBackoff{d: d}
}

// ---------------------------------------------------------------------------
// ExponentialBackoff
// ---------------------------------------------------------------------------

// exponentialBackoff returns base * factor^attempt.
type exponentialBackoff struct {
	base   time.Duration
	factor float64
}

func (b *exponentialBackoff) Delay(attempt int) time.Duration {
	return time.Duration(
		float64(b.base) * math.Pow(b.factor, float64(attempt)),
	)
}

// ExponentialBackoff returns a [BackoffStrategy] whose delay grows
// geometrically: base * factor^attempt. The factor must be greater than 1 for
// the delay to actually grow.
func ExponentialBackoff(base time.Duration, factor float64) BackoffStrategy {
	return &exponentialBackoff{base: base, factor: factor}
}

// ---------------------------------------------------------------------------
// ExponentialJitterBackoff
// ---------------------------------------------------------------------------

// exponentialJitterBackoff returns a random duration in
// [0, base * factor^attempt].
type exponentialJitterBackoff struct {
	base   time.Duration
	factor float64
}

func (b *exponentialJitterBackoff) Delay(attempt int) time.Duration {
	upper := int64(float64(b.base) * math.Pow(b.factor, float64(attempt)))
	if upper <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(upper + 1))
}

// ExponentialJitterBackoff returns a [BackoffStrategy] whose delay is a
// random duration uniformly distributed in [0, base * factor^attempt],
// spreading retries across time to avoid thundering herds.
func ExponentialJitterBackoff(
	base time.Duration,
	factor float64,
) BackoffStrategy {
	return &exponentialJitterBackoff{base: base, factor: factor}
}

package aegis

import (
	"context"
	"time"
)

// Pattern: Timeout — wraps a call attempt with a context deadline, surfacing
// a KindTimeout rejection when the attempt does not complete in time.
// Distinguishes timeout-caused cancellation from parent context cancellation.

// DoTimeout executes fn with a deadline of d. When fn does not complete in
// time the derived context is cancelled and a KindTimeout error is returned;
// the error is retriable, so a retry policy wrapping this call treats the
// expiry like any other downstream failure.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoTimeout[T any](
	ctx context.Context,
	d time.Duration,
	fn func(context.Context) (T, error),
	hooks *Hooks,
) (T, error) {
	var zero T

	if ctx.Err() != nil {
		return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}

	ch := make(chan result, 1)

	go func() {
		v, err := fn(timeoutCtx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-timeoutCtx.Done():
		// If the parent context is done, the caller cancelled externally.
		if ctx.Err() != nil {
			return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}

		hooks.emitTimeout()

		return zero, newTimeout()
	}
}

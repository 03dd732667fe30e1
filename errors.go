package aegis

import (
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Tagged rejection kinds
// ---------------------------------------------------------------------------.

// Kind identifies which control produced a rejection. Downstream failures are
// never tagged; they propagate with KindNone so outer layers observe them
// unchanged.
type Kind uint8

const (
	// KindNone marks an error that did not originate from a control.
	KindNone Kind = iota
	// KindRateLimited marks admission denied by the sliding-window limiter.
	KindRateLimited
	// KindBulkheadFull marks a call rejected because the wait queue was at
	// capacity.
	KindBulkheadFull
	// KindBulkheadTimeout marks a queued call whose wait deadline fired
	// before a slot was granted.
	KindBulkheadTimeout
	// KindCircuitOpen marks a call rejected by an open circuit breaker
	// without invoking the downstream.
	KindCircuitOpen
	// KindTimeout marks a call attempt cancelled by the per-attempt timeout.
	KindTimeout
)

// String returns the kind as a stable snake_case token.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindBulkheadFull:
		return "bulkhead_full"
	case KindBulkheadTimeout:
		return "bulkhead_timeout"
	case KindCircuitOpen:
		return "circuit_open"
	case KindTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// ---------------------------------------------------------------------------
// Error — structured control rejection
// ---------------------------------------------------------------------------.

type (
	// ControlError identifies errors produced by the control layer itself,
	// as opposed to errors surfaced by the wrapped downstream call.
	//nolint:iface // exported for consumer error classification.
	ControlError interface {
		error
		// IsControl reports whether this error originates from a control.
		IsControl() bool
	}

	// Error is the rejection produced by a control. It carries the kind plus
	// the structured fields the transport boundary needs to select a status
	// and a retry hint; no stringly-typed codes.
	Error struct {
		// Kind tags the originating control.
		Kind Kind
		// Pool is the bulkhead pool name for bulkhead rejections.
		Pool string
		// State is the breaker state for circuit rejections.
		State State
		// RetryAfter is the wait hint for rate-limit rejections.
		RetryAfter time.Duration
		// Waited is the time spent queued before a bulkhead timeout.
		Waited time.Duration
	}

	// transientError marks a wrapped error as transient (retriable).
	transientError struct {
		err error
	}

	// permanentError marks a wrapped error as permanent (non-retriable).
	permanentError struct {
		err error
	}
)

// Error returns a human-readable description of the rejection.
func (e *Error) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	case KindBulkheadFull:
		return fmt.Sprintf("bulkhead %q queue full", e.Pool)
	case KindBulkheadTimeout:
		return fmt.Sprintf(
			"bulkhead %q wait timed out after %s",
			e.Pool,
			e.Waited,
		)
	case KindCircuitOpen:
		return "circuit breaker is open"
	case KindTimeout:
		return "call attempt timed out"
	default:
		return "control rejection"
	}
}

// IsControl reports that the error originates from the control layer.
func (*Error) IsControl() bool { return true }

// Is matches another *Error by kind, so tests and callers can compare against
// a bare &Error{Kind: ...} template via errors.Is.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}

	return te.Kind == e.Kind
}

// KindOf classifies err: it returns the tagged kind if err originated from a
// control anywhere in its chain, and KindNone otherwise (including nil).
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	return KindNone
}

func newRateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, RetryAfter: retryAfter}
}

func newBulkheadFull(pool string) *Error {
	return &Error{Kind: KindBulkheadFull, Pool: pool}
}

func newBulkheadTimeout(pool string, waited time.Duration) *Error {
	return &Error{Kind: KindBulkheadTimeout, Pool: pool, Waited: waited}
}

func newCircuitOpen(state State) *Error {
	return &Error{Kind: KindCircuitOpen, State: state}
}

func newTimeout() *Error {
	return &Error{Kind: KindTimeout}
}

// ---------------------------------------------------------------------------
// Transient / Permanent classification of downstream errors
// ---------------------------------------------------------------------------.

func (e *transientError) Error() string { return "transient: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Transient wraps err to mark it as a transient (retriable) error.
// Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// Permanent wraps err to mark it as a permanent (non-retriable) error.
// Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsTransient reports whether err is retriable. Unclassified downstream
// errors are treated as transient. Returns false for nil.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pe *permanentError

	return !errors.As(err, &pe)
}

// IsPermanent reports whether err was explicitly marked as permanent.
// Returns false for nil and for unclassified errors.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var pe *permanentError

	return errors.As(err, &pe)
}

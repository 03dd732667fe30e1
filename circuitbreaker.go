package aegis

import (
	"context"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// States
// ---------------------------------------------------------------------------.

// State is a circuit breaker state.
type State uint8

const (
	// StateClosed lets calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen fails fast without invoking the downstream.
	StateOpen
	// StateHalfOpen lets probe calls through while testing recovery.
	StateHalfOpen
)

// String returns the state as a stable snake_case token.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------.

type (
	circuitBreakerConfig struct {
		failureThreshold  int
		resetTimeout      time.Duration
		halfOpenSuccesses int
	}

	// CircuitBreakerOption configures a circuit breaker.
	CircuitBreakerOption func(*circuitBreakerConfig)

	// Transition is one entry of the breaker's state-change history.
	Transition struct {
		At   time.Time
		From State
		To   State
	}

	// CircuitBreaker tracks consecutive failures and successes of a guarded
	// dependency and short-circuits calls when it is judged unhealthy.
	//
	// Pattern: Circuit Breaker — three-state FSM with a lazy open→half-open
	// transition evaluated at the start of each call. All transition
	// evaluation is serialized under one mutex so interleaved calls can never
	// race a transition (counters and state always move together).
	CircuitBreaker struct {
		clock Clock
		hooks *Hooks
		cfg   circuitBreakerConfig

		mu                  sync.Mutex
		state               State
		consecutiveFailures int
		halfOpenSuccesses   int
		lastFailure         time.Time
		history             []Transition

		total      uint64
		successful uint64
		failed     uint64
		rejected   uint64
	}
)

// transitionHistoryLimit bounds the in-memory state-change log.
const transitionHistoryLimit = 64

func defaultCircuitBreakerConfig() circuitBreakerConfig {
	return circuitBreakerConfig{
		failureThreshold:  5,
		resetTimeout:      30 * time.Second,
		halfOpenSuccesses: 3,
	}
}

// FailureThreshold sets the number of consecutive failures before opening.
func FailureThreshold(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.failureThreshold = n
	}
}

// ResetTimeout sets how long the breaker stays open before a probe call may
// transition it to half-open.
func ResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.resetTimeout = d
	}
}

// HalfOpenSuccesses sets the number of consecutive successful probes needed
// to close from half-open. Requiring more than one avoids flapping back to
// closed on a single lucky success.
func HalfOpenSuccesses(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.halfOpenSuccesses = n
	}
}

// NewCircuitBreaker creates a circuit breaker with the given options.
func NewCircuitBreaker(
	clock Clock,
	hooks *Hooks,
	opts ...CircuitBreakerOption,
) *CircuitBreaker {
	cfg := defaultCircuitBreakerConfig()
	for _, o := range opts {
		o(&cfg)
	}

	return &CircuitBreaker{
		clock: clock,
		hooks: hooks,
		cfg:   cfg,
	}
}

// transitionLocked moves the breaker to a new state, resets the per-state
// counters, and appends a history entry. Caller must hold mu. The returned
// Transition is emitted to hooks after the lock is released.
func (cb *CircuitBreaker) transitionLocked(to State) Transition {
	tr := Transition{From: cb.state, To: to, At: cb.clock.Now()}

	cb.state = to
	// At most one of the two counters is meaningful per state; both reset on
	// every transition.
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0

	cb.history = append(cb.history, tr)
	if len(cb.history) > transitionHistoryLimit {
		cb.history = append(
			cb.history[:0],
			cb.history[len(cb.history)-transitionHistoryLimit:]...,
		)
	}

	return tr
}

// Allow checks whether a call may proceed, evaluating the pending lazy
// open→half-open transition first. Returns a KindCircuitOpen rejection while
// the breaker is open and the reset timeout has not elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()

	cb.total++

	if cb.state == StateOpen {
		if cb.clock.Since(cb.lastFailure) < cb.cfg.resetTimeout {
			cb.rejected++
			state := cb.state
			cb.mu.Unlock()

			cb.hooks.emitCircuitRejected()

			return newCircuitOpen(state)
		}

		tr := cb.transitionLocked(StateHalfOpen)
		cb.mu.Unlock()

		cb.hooks.emitCircuitChange(tr.From, tr.To)

		return nil
	}

	cb.mu.Unlock()

	return nil
}

// RecordSuccess records a successful call outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	cb.successful++

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.mu.Unlock()

	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses < cb.cfg.halfOpenSuccesses {
			cb.mu.Unlock()
			return
		}

		tr := cb.transitionLocked(StateClosed)
		cb.mu.Unlock()

		cb.hooks.emitCircuitChange(tr.From, tr.To)

	default:
		// StateOpen — stray success after rejection window, no transition.
		cb.mu.Unlock()
	}
}

// RecordFailure records a failed call outcome.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	cb.failed++
	cb.lastFailure = cb.clock.Now()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures < cb.cfg.failureThreshold {
			cb.mu.Unlock()
			return
		}

		tr := cb.transitionLocked(StateOpen)
		cb.mu.Unlock()

		cb.hooks.emitCircuitChange(tr.From, tr.To)

	case StateHalfOpen:
		// Single strike re-opens.
		tr := cb.transitionLocked(StateOpen)
		cb.mu.Unlock()

		cb.hooks.emitCircuitChange(tr.From, tr.To)

	default:
		// StateOpen — already open.
		cb.mu.Unlock()
	}
}

// Execute runs op through the breaker gate: fail fast while open, otherwise
// invoke op and feed its outcome back into the state machine. The original
// downstream error is always re-surfaced, never suppressed.
func (cb *CircuitBreaker) Execute(
	ctx context.Context,
	op func(context.Context) error,
) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	if err := op(ctx); err != nil {
		cb.RecordFailure()

		return err
	}

	cb.RecordSuccess()

	return nil
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Stats returns a point-in-time snapshot of the breaker, including a copy of
// the transition history.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	history := make([]TransitionStats, 0, len(cb.history))
	for _, tr := range cb.history {
		history = append(history, TransitionStats{
			From: tr.From.String(),
			To:   tr.To.String(),
			At:   tr.At,
		})
	}

	return CircuitBreakerStats{
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		Total:               cb.total,
		Successful:          cb.successful,
		Failed:              cb.failed,
		Rejected:            cb.rejected,
		History:             history,
	}
}

// Reset forces the breaker to closed and zeroes all counters and history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()

	from := cb.state
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0
	cb.lastFailure = time.Time{}
	cb.history = nil
	cb.total = 0
	cb.successful = 0
	cb.failed = 0
	cb.rejected = 0

	cb.mu.Unlock()

	if from != StateClosed {
		cb.hooks.emitCircuitChange(from, StateClosed)
	}
}

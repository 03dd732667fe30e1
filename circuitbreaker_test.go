package aegis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errDownstream = errors.New("downstream unavailable")

// ---------------------------------------------------------------------------
// Tests: closed state — failures below the threshold keep the breaker closed
// ---------------------------------------------------------------------------

func TestCircuitBreakerStaysClosedBelowThreshold(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(5))

	for _i := 0; _i < 4; _i++ {
		cb.RecordFailure()
	}

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %v, want closed after 4/5 failures", got)
	}

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil while closed", err)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(3))

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	// The success broke the streak; only 2 consecutive failures since.
	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %v, want closed", got)
	}
}

// ---------------------------------------------------------------------------
// Tests: opening and fail-fast
// ---------------------------------------------------------------------------

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(3))

	for _i := 0; _i < 3; _i++ {
		cb.RecordFailure()
	}

	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open at threshold", got)
	}
}

func TestCircuitBreakerOpenRejectsWithoutInvoking(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(1),
		ResetTimeout(30*time.Second),
	)

	cb.RecordFailure()

	invoked := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})

	if KindOf(err) != KindCircuitOpen {
		t.Fatalf("Execute() = %v, want KindCircuitOpen", err)
	}

	if invoked {
		t.Fatal("operation invoked while breaker open")
	}
}

func TestCircuitBreakerOpenErrorCarriesState(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(1))

	cb.RecordFailure()

	var ce *Error

	err := cb.Allow()
	if !errors.As(err, &ce) {
		t.Fatalf("Allow() = %v, want *Error", err)
	}

	if ce.State != StateOpen {
		t.Fatalf("Error.State = %v, want open", ce.State)
	}
}

// ---------------------------------------------------------------------------
// Tests: half-open recovery
// ---------------------------------------------------------------------------

func TestCircuitBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(1),
		ResetTimeout(30*time.Second),
	)

	cb.RecordFailure()

	clk.advance(29 * time.Second)

	if err := cb.Allow(); KindOf(err) != KindCircuitOpen {
		t.Fatalf("Allow() before timeout = %v, want KindCircuitOpen", err)
	}

	clk.advance(time.Second)

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v, want nil probe", err)
	}

	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() = %v, want half_open", got)
	}
}

func TestCircuitBreakerHalfOpenClosesAfterSuccesses(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(1),
		ResetTimeout(time.Second),
		HalfOpenSuccesses(3),
	)

	cb.RecordFailure()
	clk.advance(time.Second)
	cb.Allow() // open → half-open

	cb.RecordSuccess()
	cb.RecordSuccess()

	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() = %v, want half_open after 2/3 probes", got)
	}

	cb.RecordSuccess()

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %v, want closed after 3/3 probes", got)
	}
}

func TestCircuitBreakerHalfOpenReopensOnSingleFailure(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(1),
		ResetTimeout(time.Second),
		HalfOpenSuccesses(3),
	)

	cb.RecordFailure()
	clk.advance(time.Second)
	cb.Allow() // open → half-open

	cb.RecordSuccess()
	cb.RecordFailure()

	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open after half-open failure", got)
	}
}

func TestCircuitBreakerReopenedWaitsFullResetTimeout(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(1),
		ResetTimeout(10*time.Second),
	)

	cb.RecordFailure()
	clk.advance(10 * time.Second)
	cb.Allow() // half-open
	cb.RecordFailure()

	// The re-opening failure restarts the recovery clock.
	clk.advance(9 * time.Second)

	if err := cb.Allow(); KindOf(err) != KindCircuitOpen {
		t.Fatalf("Allow() = %v, want KindCircuitOpen", err)
	}
}

// ---------------------------------------------------------------------------
// Tests: Execute feeds outcomes back
// ---------------------------------------------------------------------------

func TestCircuitBreakerExecutePropagatesDownstreamError(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(5))

	err := cb.Execute(context.Background(), func(context.Context) error {
		return errDownstream
	})

	if !errors.Is(err, errDownstream) {
		t.Fatalf("Execute() = %v, want downstream error verbatim", err)
	}
}

func TestCircuitBreakerExecuteOpensAfterThreshold(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(2))

	for _i := 0; _i < 2; _i++ {
		cb.Execute(context.Background(), func(context.Context) error {
			return errDownstream
		})
	}

	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}
}

// ---------------------------------------------------------------------------
// Tests: stats, history, reset
// ---------------------------------------------------------------------------

func TestCircuitBreakerStatsCounters(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(2),
		ResetTimeout(30*time.Second),
	)

	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure() // opens
	cb.Allow()         // rejected

	s := cb.Stats()
	if s.State != "open" {
		t.Fatalf("Stats().State = %q, want open", s.State)
	}
	if s.Total != 4 {
		t.Fatalf("Stats().Total = %d, want 4", s.Total)
	}
	if s.Successful != 1 {
		t.Fatalf("Stats().Successful = %d, want 1", s.Successful)
	}
	if s.Failed != 2 {
		t.Fatalf("Stats().Failed = %d, want 2", s.Failed)
	}
	if s.Rejected != 1 {
		t.Fatalf("Stats().Rejected = %d, want 1", s.Rejected)
	}
}

func TestCircuitBreakerHistoryRecordsTransitions(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(1),
		ResetTimeout(time.Second),
		HalfOpenSuccesses(1),
	)

	cb.RecordFailure() // closed → open
	clk.advance(time.Second)
	cb.Allow()         // open → half_open
	cb.RecordSuccess() // half_open → closed

	s := cb.Stats()
	if len(s.History) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(s.History))
	}

	want := []struct{ from, to string }{
		{"closed", "open"},
		{"open", "half_open"},
		{"half_open", "closed"},
	}

	for i, w := range want {
		if s.History[i].From != w.from || s.History[i].To != w.to {
			t.Fatalf(
				"History[%d] = %s→%s, want %s→%s",
				i, s.History[i].From, s.History[i].To, w.from, w.to,
			)
		}
	}
}

func TestCircuitBreakerHistoryBounded(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		&Hooks{},
		FailureThreshold(1),
		ResetTimeout(time.Second),
		HalfOpenSuccesses(1),
	)

	// Each cycle produces 3 transitions; run enough to overflow the cap.
	for _i := 0; _i < 50; _i++ {
		cb.RecordFailure()
		clk.advance(time.Second)
		cb.Allow()
		cb.RecordSuccess()
	}

	if got := len(cb.Stats().History); got != transitionHistoryLimit {
		t.Fatalf("len(History) = %d, want %d", got, transitionHistoryLimit)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(1))

	cb.RecordFailure()
	cb.Allow() // rejected

	cb.Reset()

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() after Reset = %v, want closed", got)
	}

	s := cb.Stats()
	if s.Total != 0 || s.Failed != 0 || s.Rejected != 0 {
		t.Fatalf("Stats() after Reset = %+v, want zeroed", s)
	}
	if len(s.History) != 0 {
		t.Fatalf("len(History) after Reset = %d, want 0", len(s.History))
	}

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after Reset = %v, want nil", err)
	}
}

// ---------------------------------------------------------------------------
// Tests: hooks
// ---------------------------------------------------------------------------

func TestCircuitBreakerHooksObserveTransitions(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
		rejected    int
	)

	hooks := &Hooks{
		OnCircuitChange: func(from, to State) {
			mu.Lock()
			transitions = append(
				transitions,
				from.String()+"->"+to.String(),
			)
			mu.Unlock()
		},
		OnCircuitRejected: func() {
			mu.Lock()
			rejected++
			mu.Unlock()
		},
	}

	clk := newStubClock()
	cb := NewCircuitBreaker(
		clk,
		hooks,
		FailureThreshold(1),
		ResetTimeout(time.Second),
		HalfOpenSuccesses(1),
	)

	cb.RecordFailure()
	cb.Allow() // rejected
	clk.advance(time.Second)
	cb.Allow()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}

	if rejected != 1 {
		t.Fatalf("OnCircuitRejected calls = %d, want 1", rejected)
	}
}

// ---------------------------------------------------------------------------
// Tests: concurrency — transitions never race
// ---------------------------------------------------------------------------

func TestCircuitBreakerConcurrentOutcomes(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(100))

	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if cb.Allow() != nil {
				return
			}
			if i%2 == 0 {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}
		}(i)
	}

	wg.Wait()

	s := cb.Stats()
	if s.Successful+s.Failed != 100 {
		t.Fatalf(
			"Successful+Failed = %d, want 100",
			s.Successful+s.Failed,
		)
	}
}

func BenchmarkCircuitBreakerAllow(b *testing.B) {
	cb := NewCircuitBreaker(RealClock{}, &Hooks{})

	b.ResetTimer()

	for _i := 0; _i < b.N; _i++ {
		_ = cb.Allow()
		cb.RecordSuccess()
	}
}

package aegis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// End-to-end: full stack around a flaky downstream
// ---------------------------------------------------------------------------

func TestIntegrationFullStackRecovers(t *testing.T) {
	clk := newInstantClock()
	p := NewPipeline[string]("orders",
		WithRegistry(NewRegistry()),
		WithClock(clk),
		WithRateLimit(MaxRequests(100), Window(time.Minute)),
		WithBulkhead(MaxConcurrent(5)),
		WithCircuitBreaker(FailureThreshold(3), ResetTimeout(time.Second)),
		WithRetry(MaxRetries(1), InitialDelay(time.Millisecond)),
	)

	healthy := false
	call := func(context.Context) (string, error) {
		if !healthy {
			return "", errDownstream
		}
		return "ok", nil
	}

	ctx := context.Background()

	// Each Do burns 2 attempts and one breaker failure; 3 calls open it.
	for _i := 0; _i < 3; _i++ {
		if _, err := p.Do(ctx, call); !errors.Is(err, errDownstream) {
			t.Fatalf("Do() = %v, want downstream error", err)
		}
	}

	if _, err := p.Do(ctx, call); KindOf(err) != KindCircuitOpen {
		t.Fatalf("Do() = %v, want KindCircuitOpen", err)
	}

	// Downstream recovers; after the reset timeout probes close the breaker.
	healthy = true
	clk.advance(time.Second)

	for _i := 0; _i < 3; _i++ {
		if got, err := p.Do(ctx, call); err != nil || got != "ok" {
			t.Fatalf("probe Do() = (%q, %v), want (ok, nil)", got, err)
		}
	}

	s := p.Stats()
	if s.CircuitBreaker.State != "closed" {
		t.Fatalf(
			"breaker state = %q, want closed after recovery",
			s.CircuitBreaker.State,
		)
	}
}

// ---------------------------------------------------------------------------
// End-to-end: admission controls reject before the breaker sees anything
// ---------------------------------------------------------------------------

func TestIntegrationShedCallsDoNotTouchBreaker(t *testing.T) {
	clk := newStubClock()
	p := NewPipeline[int]("",
		WithClock(clk),
		WithRateLimit(MaxRequests(1), Window(time.Minute)),
		WithCircuitBreaker(FailureThreshold(1)),
	)

	ctx := context.Background()
	ok := func(context.Context) (int, error) { return 1, nil }

	p.Do(ctx, ok)

	// Shed by the limiter: the breaker must not count these calls at all.
	for _i := 0; _i < 5; _i++ {
		if _, err := p.Do(ctx, ok); KindOf(err) != KindRateLimited {
			t.Fatalf("Do() = %v, want KindRateLimited", err)
		}
	}

	s := p.Stats()
	if s.CircuitBreaker.Total != 1 {
		t.Fatalf(
			"CircuitBreaker.Total = %d, want 1 (shed calls invisible)",
			s.CircuitBreaker.Total,
		)
	}
	if s.RateLimiter.Rejected != 5 {
		t.Fatalf("RateLimiter.Rejected = %d, want 5", s.RateLimiter.Rejected)
	}
}

// ---------------------------------------------------------------------------
// End-to-end: concurrent load against a guarded downstream
// ---------------------------------------------------------------------------

func TestIntegrationConcurrentLoad(t *testing.T) {
	p := NewPipeline[int]("",
		WithRateLimit(MaxRequests(1000), Window(time.Minute)),
		WithBulkhead(MaxConcurrent(8), MaxQueueSize(100), MaxWait(5*time.Second)),
		WithCircuitBreaker(FailureThreshold(1000)),
	)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		inFlight  int
		maxSeen   int
		succeeded int
	)

	for _i := 0; _i < 50; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := p.Do(context.Background(), func(context.Context) (int, error) {
				mu.Lock()
				inFlight++
				if inFlight > maxSeen {
					maxSeen = inFlight
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()

				return 1, nil
			})

			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()

	if maxSeen > 8 {
		t.Fatalf("max concurrent downstream calls = %d, want <= 8", maxSeen)
	}
	if succeeded != 50 {
		t.Fatalf("succeeded = %d, want all 50 (queue absorbs burst)", succeeded)
	}
}

// ---------------------------------------------------------------------------
// End-to-end: combined observability hooks across the stack
// ---------------------------------------------------------------------------

func TestIntegrationCombinedHooksObserveStack(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)

	record := func(name string) func() {
		return func() {
			mu.Lock()
			events = append(events, name)
			mu.Unlock()
		}
	}

	user := &Hooks{
		OnCircuitRejected: record("rejected"),
		OnCircuitChange: func(State, State) {
			record("change")()
		},
		OnFallbackUsed: func(error) {
			record("fallback")()
		},
	}

	clk := newInstantClock()
	p := NewPipeline[string]("",
		WithClock(clk),
		WithHooks(*CombineHooks(user, LoggingHooks(nil))),
		WithCircuitBreaker(FailureThreshold(1)),
		WithFallback("stale"),
	)

	ctx := context.Background()
	fail := func(context.Context) (string, error) { return "", errDownstream }

	p.Do(ctx, fail) // opens the breaker, fallback answers
	p.Do(ctx, fail) // rejected by breaker, fallback answers

	mu.Lock()
	defer mu.Unlock()

	want := []string{"change", "fallback", "rejected", "fallback"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

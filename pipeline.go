package aegis

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Pipeline[T] — the central integration type
// ---------------------------------------------------------------------------

// Pipeline composes the fault-tolerance controls around one guarded
// downstream dependency behind a single [Pipeline.Do] method. A call flows
// fallback → rate limiter → bulkhead → circuit breaker → retry → timeout →
// downstream; each admission layer must admit before the next is invoked,
// and each layer observes only the terminal outcome of everything nested
// inside it.
//
// Every pipeline exclusively owns its control instances; use [NewPipeline]
// with functional options to configure it. Generic options use any to work
// around Go's generic type constraint on function signatures.
type Pipeline[T any] struct {
	name  string
	hooks Hooks
	clock Clock
	chain Middleware[T]

	// References to the stateful controls, for stats, health, and reset.
	entries []ControlEntry[T]
	rl      *RateLimiter
	bh      *Bulkhead
	cb      *CircuitBreaker
	rp      *RetryPolicy

	// Registry this pipeline is registered with (nil if anonymous or opted
	// out).
	registry *Registry
}

// Name returns the pipeline's name.
func (p *Pipeline[T]) Name() string { return p.name }

// Do executes fn through the composed control chain.
func (p *Pipeline[T]) Do(
	ctx context.Context,
	fn func(context.Context) (T, error),
) (T, error) {
	wrapped := p.chain(fn)

	return wrapped(ctx)
}

// RateLimiter returns the pipeline's admission gate, or nil when the
// pipeline carries none. The transport boundary checks it before entering
// the pipeline so a rejected call never touches the other controls.
func (p *Pipeline[T]) RateLimiter() *RateLimiter { return p.rl }

// Stats returns a snapshot of every control the pipeline carries.
func (p *Pipeline[T]) Stats() PipelineStats {
	stats := PipelineStats{Name: p.name}

	if p.rl != nil {
		s := p.rl.Stats()
		stats.RateLimiter = &s
	}

	if p.bh != nil {
		s := p.bh.Stats()
		stats.Bulkhead = &s
	}

	if p.cb != nil {
		s := p.cb.Stats()
		stats.CircuitBreaker = &s
	}

	if p.rp != nil {
		s := p.rp.Stats()
		stats.Retry = &s
	}

	return stats
}

// Reset is the administrative reset: it clears every control's counters,
// forces the breaker to closed, drains the bulkhead queue, and empties the
// rate limiter's admission history.
func (p *Pipeline[T]) Reset() {
	if p.rl != nil {
		p.rl.Reset()
	}

	if p.bh != nil {
		p.bh.Reset()
	}

	if p.cb != nil {
		p.cb.Reset()
	}

	if p.rp != nil {
		p.rp.Reset()
	}
}

// ---------------------------------------------------------------------------
// Non-generic option descriptors — stored as any, interpreted by NewPipeline
// ---------------------------------------------------------------------------

// pipelineOptionFunc is a non-generic option that modifies pipelineSetup.
type pipelineOptionFunc func(*pipelineSetup)

// pipelineSetup holds non-generic configuration collected during NewPipeline.
type pipelineSetup struct {
	clock    Clock
	hooks    Hooks
	registry *Registry
	manager  *BulkheadManager
}

// rateLimitDesc holds deferred rate limiter configuration.
type rateLimitDesc struct {
	opts []RateLimiterOption
}

// bulkheadDesc holds deferred bulkhead configuration. An empty pool name
// means the pipeline's own name.
type bulkheadDesc struct {
	pool string
	opts []BulkheadOption
}

// circuitBreakerDesc holds deferred circuit breaker configuration.
type circuitBreakerDesc struct {
	opts []CircuitBreakerOption
}

// retryDesc holds deferred retry configuration.
type retryDesc struct {
	opts []RetryOption
}

// timeoutDesc holds deferred per-attempt timeout configuration.
type timeoutDesc struct {
	d time.Duration
}

// fallbackDesc holds a static fallback value served on failure.
type fallbackDesc[T any] struct {
	val T
}

// fallbackFuncDesc holds a fallback function invoked on failure.
type fallbackFuncDesc[T any] struct {
	fn func(error) (T, error)
}

// ---------------------------------------------------------------------------
// With* functions — all return any
// ---------------------------------------------------------------------------

// WithClock sets the clock used by all controls within this pipeline.
func WithClock(c Clock) any {
	return pipelineOptionFunc(func(s *pipelineSetup) {
		s.clock = c
	})
}

// WithHooks sets the lifecycle hooks for all controls within this pipeline.
func WithHooks(h Hooks) any {
	return pipelineOptionFunc(func(s *pipelineSetup) {
		s.hooks = h
	})
}

// WithRegistry sets an explicit registry for the pipeline to register with.
// If not provided, named pipelines auto-register with DefaultRegistry.
func WithRegistry(reg *Registry) any {
	return pipelineOptionFunc(func(s *pipelineSetup) {
		s.registry = reg
	})
}

// WithBulkheadManager resolves the pipeline's bulkhead through a shared
// manager, so several pipelines can isolate against the same named pools.
func WithBulkheadManager(m *BulkheadManager) any {
	return pipelineOptionFunc(func(s *pipelineSetup) {
		s.manager = m
	})
}

// WithRateLimit adds a sliding-window admission gate.
func WithRateLimit(opts ...RateLimiterOption) any {
	return rateLimitDesc{opts: opts}
}

// WithBulkhead adds a concurrency limiter whose pool is named after the
// pipeline.
func WithBulkhead(opts ...BulkheadOption) any {
	return bulkheadDesc{opts: opts}
}

// WithBulkheadPool adds a concurrency limiter scoped to the named pool.
func WithBulkheadPool(pool string, opts ...BulkheadOption) any {
	return bulkheadDesc{pool: pool, opts: opts}
}

// WithCircuitBreaker adds a circuit breaker that fast-fails while the
// downstream is judged unhealthy.
func WithCircuitBreaker(opts ...CircuitBreakerOption) any {
	return circuitBreakerDesc{opts: opts}
}

// WithRetry adds bounded retry with backoff, nested inside the breaker so
// the breaker only ever observes the aggregate outcome of a logical call.
func WithRetry(opts ...RetryOption) any {
	return retryDesc{opts: opts}
}

// WithTimeout adds a per-attempt deadline of d on the downstream call.
func WithTimeout(d time.Duration) any {
	return timeoutDesc{d: d}
}

// WithFallback serves val whenever the pipeline's final outcome is an error,
// including control rejections. It sits outermost, so a shed call still gets
// an answer.
func WithFallback[T any](val T) any {
	return fallbackDesc[T]{val: val}
}

// WithFallbackFunc hands the pipeline's final error to fn and returns its
// result. Use [KindOf] inside fn to distinguish shed calls from downstream
// failures.
func WithFallbackFunc[T any](fn func(error) (T, error)) any {
	return fallbackFuncDesc[T]{fn: fn}
}

// ---------------------------------------------------------------------------
// NewPipeline[T] — construct and wire up the pipeline
// ---------------------------------------------------------------------------

// NewPipeline creates a new [Pipeline] with the given name and options.
// Options are processed in two phases: first, non-generic options (clock,
// hooks, registry, manager) are collected; then, control descriptors build
// their middleware using the resolved clock and hooks. Controls are
// auto-sorted into the fixed admission order via [SortControls] before
// chaining.
func NewPipeline[T any](name string, opts ...any) *Pipeline[T] {
	var setup pipelineSetup

	// Phase 1: collect non-generic options to resolve clock and hooks first.
	for _, opt := range opts {
		if pof, ok := opt.(pipelineOptionFunc); ok {
			pof(&setup)
		}
	}

	if setup.clock == nil {
		setup.clock = RealClock{}
	}

	hooks := setup.hooks
	clock := setup.clock

	// Phase 2: build middleware entries from control descriptors.
	var (
		entries []ControlEntry[T]
		rl      *RateLimiter
		bh      *Bulkhead
		cb      *CircuitBreaker
		rp      *RetryPolicy
	)

	for _, opt := range opts {
		switch desc := opt.(type) {
		case pipelineOptionFunc:
			// Already processed in phase 1.

		case rateLimitDesc:
			rl = NewRateLimiter(clock, &hooks, desc.opts...)
			rlRef := rl
			entries = append(entries, ControlEntry[T]{
				Priority: priorityRateLimiter,
				Name:     "rate_limiter",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						if err := rlRef.Acquire(); err != nil {
							var zero T
							return zero, err
						}
						return next(ctx)
					}
				},
			})

		case bulkheadDesc:
			pool := desc.pool
			if pool == "" {
				pool = name
			}
			if setup.manager != nil {
				bh = setup.manager.Get(pool, desc.opts...)
			} else {
				bh = NewBulkhead(pool, clock, &hooks, desc.opts...)
			}
			bhRef := bh
			entries = append(entries, ControlEntry[T]{
				Priority: priorityBulkhead,
				Name:     "bulkhead",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						if err := bhRef.Acquire(ctx); err != nil {
							var zero T
							return zero, err
						}
						defer bhRef.Release()
						return next(ctx)
					}
				},
			})

		case circuitBreakerDesc:
			cb = NewCircuitBreaker(clock, &hooks, desc.opts...)
			cbRef := cb
			entries = append(entries, ControlEntry[T]{
				Priority: priorityCircuitBreaker,
				Name:     "circuit_breaker",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						if err := cbRef.Allow(); err != nil {
							var zero T
							return zero, err
						}
						val, err := next(ctx)
						if err != nil {
							cbRef.RecordFailure()
						} else {
							cbRef.RecordSuccess()
						}
						return val, err
					}
				},
			})

		case retryDesc:
			rp = NewRetryPolicy(clock, &hooks, desc.opts...)
			rpRef := rp
			entries = append(entries, ControlEntry[T]{
				Priority: priorityRetry,
				Name:     "retry",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						var val T
						err := rpRef.Execute(ctx, func(attemptCtx context.Context) error {
							v, attemptErr := next(attemptCtx)
							if attemptErr == nil {
								val = v
							}
							return attemptErr
						})
						if err != nil {
							var zero T
							return zero, err
						}
						return val, nil
					}
				},
			})

		case timeoutDesc:
			d := desc.d
			entries = append(entries, ControlEntry[T]{
				Priority: priorityTimeout,
				Name:     "timeout",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoTimeout[T](ctx, d, next, &hooks)
					}
				},
			})

		case fallbackDesc[T]:
			val := desc.val
			entries = append(entries, ControlEntry[T]{
				Priority: priorityFallback,
				Name:     "fallback",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoFallback[T](ctx, next, val, &hooks)
					}
				},
			})

		case fallbackFuncDesc[T]:
			fn := desc.fn
			entries = append(entries, ControlEntry[T]{
				Priority: priorityFallback,
				Name:     "fallback",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoFallbackFunc[T](ctx, next, fn, &hooks)
					}
				},
			})
		}
	}

	// Sort into the fixed admission order and chain.
	sorted := SortControls[T](entries)
	chain := Chain[T](sorted...)

	// Auto-register if the pipeline has a name.
	var reg *Registry
	if name != "" {
		reg = setup.registry
		if reg == nil {
			reg = DefaultRegistry()
		}
	}

	p := &Pipeline[T]{
		name:     name,
		hooks:    hooks,
		clock:    clock,
		chain:    chain,
		entries:  entries,
		rl:       rl,
		bh:       bh,
		cb:       cb,
		rp:       rp,
		registry: reg,
	}

	if reg != nil && name != "" {
		reg.Register(p)
	}

	return p
}

package aegis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------.

type (
	bulkheadConfig struct {
		maxConcurrent int
		maxQueueSize  int
		maxWait       time.Duration
	}

	// BulkheadOption configures a bulkhead.
	BulkheadOption func(*bulkheadConfig)

	// waiter is one queued call. It is resolved exactly once — by a slot
	// grant, its deadline, context cancellation, or an administrative drain —
	// whichever claims the one-shot guard first. The resolver stores err
	// before closing done; a nil err means the slot was granted.
	waiter struct {
		resolved atomic.Bool
		done     chan struct{}
		err      error
	}

	// Bulkhead caps concurrently in-flight calls for one named resource
	// pool. Excess calls wait in a bounded FIFO queue with a deadline; a full
	// queue rejects immediately. Isolating pools per downstream dependency
	// keeps one slow dependency from starving callers of another.
	//
	// Pattern: Bulkhead — slot accounting and queue membership share one
	// mutex, so admission is test-and-increment in a single critical section
	// and concurrent callers can never over-admit.
	Bulkhead struct {
		name  string
		clock Clock
		hooks *Hooks
		cfg   bulkheadConfig

		mu      sync.Mutex
		current int
		queue   []*waiter

		admitted     uint64
		queuedTotal  uint64
		rejectedFull uint64
		timedOut     uint64
	}
)

func defaultBulkheadConfig() bulkheadConfig {
	return bulkheadConfig{
		maxConcurrent: 10,
		maxQueueSize:  20,
		maxWait:       5 * time.Second,
	}
}

// MaxConcurrent sets the number of simultaneous in-flight calls.
func MaxConcurrent(n int) BulkheadOption {
	return func(cfg *bulkheadConfig) {
		cfg.maxConcurrent = n
	}
}

// MaxQueueSize sets the bound on the pending-call queue.
func MaxQueueSize(n int) BulkheadOption {
	return func(cfg *bulkheadConfig) {
		cfg.maxQueueSize = n
	}
}

// MaxWait sets the deadline a queued call waits for a slot.
func MaxWait(d time.Duration) BulkheadOption {
	return func(cfg *bulkheadConfig) {
		cfg.maxWait = d
	}
}

// NewBulkhead creates a bulkhead for the named pool with the given options.
func NewBulkhead(
	name string,
	clock Clock,
	hooks *Hooks,
	opts ...BulkheadOption,
) *Bulkhead {
	cfg := defaultBulkheadConfig()
	for _, o := range opts {
		o(&cfg)
	}

	return &Bulkhead{
		name:  name,
		clock: clock,
		hooks: hooks,
		cfg:   cfg,
	}
}

// resolve claims the waiter's one-shot guard, stores the outcome, and wakes
// the waiting goroutine. Reports whether this caller won the guard.
func (w *waiter) resolve(err error) bool {
	if !w.resolved.CompareAndSwap(false, true) {
		return false
	}

	w.err = err
	close(w.done)

	return true
}

// Name returns the pool name.
func (b *Bulkhead) Name() string { return b.name }

// Acquire obtains a slot, queueing with a deadline when the pool is at
// capacity. Returns a KindBulkheadFull rejection when the queue is at
// capacity, a KindBulkheadTimeout rejection when the deadline fires before a
// slot is granted, or the context error if ctx is cancelled while queued.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	b.mu.Lock()

	if b.current < b.cfg.maxConcurrent {
		b.current++
		b.admitted++
		b.mu.Unlock()

		b.hooks.emitBulkheadAcquired(b.name)

		return nil
	}

	if len(b.queue) >= b.cfg.maxQueueSize {
		b.rejectedFull++
		b.mu.Unlock()

		b.hooks.emitBulkheadFull(b.name)

		return newBulkheadFull(b.name)
	}

	w := &waiter{done: make(chan struct{})}
	b.queue = append(b.queue, w)
	b.queuedTotal++
	depth := len(b.queue)
	b.mu.Unlock()

	b.hooks.emitBulkheadQueued(b.name, depth)

	return b.await(ctx, w)
}

// await blocks until the queued waiter is resolved by a grant, its deadline,
// or context cancellation. Exactly one resolution path wins the waiter's
// one-shot guard; the losers defer to the winner's outcome.
func (b *Bulkhead) await(ctx context.Context, w *waiter) error {
	start := b.clock.Now()
	timer := b.clock.NewTimer(b.cfg.maxWait)
	defer timer.Stop()

	select {
	case <-w.done:
		return b.settle(w)

	case <-timer.C():
		waited := b.clock.Since(start)
		if w.resolve(newBulkheadTimeout(b.name, waited)) {
			b.unlink(w)

			b.mu.Lock()
			b.timedOut++
			b.mu.Unlock()

			b.hooks.emitBulkheadTimeout(b.name, waited)

			return w.err
		}
		// A grant or drain won the guard between the timer firing and the
		// check; take its outcome instead.
		<-w.done

		return b.settle(w)

	case <-ctx.Done():
		if w.resolve(ctx.Err()) {
			b.unlink(w)

			return w.err
		}

		<-w.done
		if w.err == nil {
			// Granted concurrently with cancellation; hand the slot on.
			b.Release()
		}

		return ctx.Err() //nolint:wrapcheck // preserving context error identity
	}
}

// settle converts a resolved waiter into the caller's outcome: nil means the
// slot is now held by this call.
func (b *Bulkhead) settle(w *waiter) error {
	if w.err != nil {
		return w.err
	}

	b.hooks.emitBulkheadAcquired(b.name)

	return nil
}

// unlink removes a resolved waiter from the queue, if it is still linked.
func (b *Bulkhead) unlink(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, qw := range b.queue {
		if qw == w {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)

			return
		}
	}
}

// Release gives up a slot. If a live waiter heads the queue, the slot
// transfers to it directly (strict FIFO); otherwise the slot is freed.
func (b *Bulkhead) Release() {
	b.mu.Lock()

	for len(b.queue) > 0 {
		w := b.queue[0]
		b.queue = b.queue[1:]

		if w.resolve(nil) {
			// Slot transferred: current stays unchanged.
			b.admitted++
			b.mu.Unlock()

			b.hooks.emitBulkheadReleased(b.name)

			return
		}
		// Waiter already resolved by deadline or cancellation; drop it.
	}

	b.current--
	b.mu.Unlock()

	b.hooks.emitBulkheadReleased(b.name)
}

// Execute runs op within a pool slot, releasing it whether op succeeds or
// fails.
func (b *Bulkhead) Execute(
	ctx context.Context,
	op func(context.Context) error,
) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

// Full reports whether all slots are in use.
func (b *Bulkhead) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.current >= b.cfg.maxConcurrent
}

// Stats returns a point-in-time snapshot of the pool.
func (b *Bulkhead) Stats() BulkheadStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadStats{
		Name:          b.name,
		MaxConcurrent: b.cfg.maxConcurrent,
		MaxQueueSize:  b.cfg.maxQueueSize,
		Current:       b.current,
		QueueDepth:    len(b.queue),
		Admitted:      b.admitted,
		Queued:        b.queuedTotal,
		RejectedFull:  b.rejectedFull,
		TimedOut:      b.timedOut,
	}
}

// Reset zeroes the counters and drains the queue, failing every pending
// waiter. In-flight calls keep their slots, so the concurrency count is left
// untouched and stays accurate as they complete.
func (b *Bulkhead) Reset() {
	b.mu.Lock()

	drained := b.queue
	b.queue = nil
	b.admitted = 0
	b.queuedTotal = 0
	b.rejectedFull = 0
	b.timedOut = 0

	b.mu.Unlock()

	for _, w := range drained {
		w.resolve(newBulkheadTimeout(b.name, 0))
	}
}

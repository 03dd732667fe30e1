package aegis

import "time"

// Hooks holds optional callback functions for control lifecycle events. All
// fields are nil by default; callers set only the hooks they care about. Once
// constructed, a Hooks value must not be mutated — emit methods read the
// function fields without synchronisation, which is safe as long as the
// struct is read-only after initialisation.
//
// Pattern: Observer — decouples control event emission from consumers
// (logging, metrics, alerting) without controls knowing about observers.
type Hooks struct {
	OnRateLimited      func(retryAfter time.Duration)
	OnBulkheadQueued   func(pool string, depth int)
	OnBulkheadFull     func(pool string)
	OnBulkheadTimeout  func(pool string, waited time.Duration)
	OnBulkheadAcquired func(pool string)
	OnBulkheadReleased func(pool string)
	OnCircuitChange    func(from, to State)
	OnCircuitRejected  func()
	OnRetry            func(attempt int, delay time.Duration, err error)
	OnTimeout          func()
	OnFallbackUsed     func(err error)
}

func (h *Hooks) emitRateLimited(retryAfter time.Duration) {
	if h.OnRateLimited != nil {
		h.OnRateLimited(retryAfter)
	}
}

func (h *Hooks) emitBulkheadQueued(pool string, depth int) {
	if h.OnBulkheadQueued != nil {
		h.OnBulkheadQueued(pool, depth)
	}
}

func (h *Hooks) emitBulkheadFull(pool string) {
	if h.OnBulkheadFull != nil {
		h.OnBulkheadFull(pool)
	}
}

func (h *Hooks) emitBulkheadTimeout(pool string, waited time.Duration) {
	if h.OnBulkheadTimeout != nil {
		h.OnBulkheadTimeout(pool, waited)
	}
}

func (h *Hooks) emitBulkheadAcquired(pool string) {
	if h.OnBulkheadAcquired != nil {
		h.OnBulkheadAcquired(pool)
	}
}

func (h *Hooks) emitBulkheadReleased(pool string) {
	if h.OnBulkheadReleased != nil {
		h.OnBulkheadReleased(pool)
	}
}

func (h *Hooks) emitCircuitChange(from, to State) {
	if h.OnCircuitChange != nil {
		h.OnCircuitChange(from, to)
	}
}

func (h *Hooks) emitCircuitRejected() {
	if h.OnCircuitRejected != nil {
		h.OnCircuitRejected()
	}
}

func (h *Hooks) emitRetry(attempt int, delay time.Duration, err error) {
	if h.OnRetry != nil {
		h.OnRetry(attempt, delay, err)
	}
}

func (h *Hooks) emitTimeout() {
	if h.OnTimeout != nil {
		h.OnTimeout()
	}
}

func (h *Hooks) emitFallbackUsed(err error) {
	if h.OnFallbackUsed != nil {
		h.OnFallbackUsed(err)
	}
}

// CombineHooks fans every event out to each of the given hook sets in order.
// Nil entries are skipped. Use it to stack user callbacks with [LoggingHooks]
// and [MetricsHooks].
func CombineHooks(sets ...*Hooks) *Hooks {
	combined := &Hooks{}

	combined.OnRateLimited = func(retryAfter time.Duration) {
		for _, h := range sets {
			if h != nil {
				h.emitRateLimited(retryAfter)
			}
		}
	}
	combined.OnBulkheadQueued = func(pool string, depth int) {
		for _, h := range sets {
			if h != nil {
				h.emitBulkheadQueued(pool, depth)
			}
		}
	}
	combined.OnBulkheadFull = func(pool string) {
		for _, h := range sets {
			if h != nil {
				h.emitBulkheadFull(pool)
			}
		}
	}
	combined.OnBulkheadTimeout = func(pool string, waited time.Duration) {
		for _, h := range sets {
			if h != nil {
				h.emitBulkheadTimeout(pool, waited)
			}
		}
	}
	combined.OnBulkheadAcquired = func(pool string) {
		for _, h := range sets {
			if h != nil {
				h.emitBulkheadAcquired(pool)
			}
		}
	}
	combined.OnBulkheadReleased = func(pool string) {
		for _, h := range sets {
			if h != nil {
				h.emitBulkheadReleased(pool)
			}
		}
	}
	combined.OnCircuitChange = func(from, to State) {
		for _, h := range sets {
			if h != nil {
				h.emitCircuitChange(from, to)
			}
		}
	}
	combined.OnCircuitRejected = func() {
		for _, h := range sets {
			if h != nil {
				h.emitCircuitRejected()
			}
		}
	}
	combined.OnRetry = func(attempt int, delay time.Duration, err error) {
		for _, h := range sets {
			if h != nil {
				h.emitRetry(attempt, delay, err)
			}
		}
	}
	combined.OnTimeout = func() {
		for _, h := range sets {
			if h != nil {
				h.emitTimeout()
			}
		}
	}
	combined.OnFallbackUsed = func(err error) {
		for _, h := range sets {
			if h != nil {
				h.emitFallbackUsed(err)
			}
		}
	}

	return combined
}

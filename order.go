package aegis

import "sort"

// ControlEntry holds a middleware with its priority for auto-ordering.
type ControlEntry[T any] struct {
	MW       Middleware[T]
	Name     string
	Priority int
}

// Priority constants fix the execution order of the controls. Lower priority
// = outermost middleware (executed first). The rate limiter gates admission
// before anything else runs; retry sits innermost so an outer breaker only
// observes the aggregate outcome of a logical call, never individual
// attempts.
const (
	priorityFallback       = 0 // outermost — last resort, not an admission gate
	priorityRateLimiter    = 1 // first admission gate
	priorityBulkhead       = 2
	priorityCircuitBreaker = 3
	priorityRetry          = 4
	priorityTimeout        = 5 // innermost — deadline applies per attempt
)

// SortControls sorts control entries by priority (lowest first = outermost).
// Stable sort preserves insertion order among equal priorities.
func SortControls[T any](entries []ControlEntry[T]) []Middleware[T] {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]ControlEntry[T], 0, len(entries))
	sorted = append(sorted, entries...)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	mws := make([]Middleware[T], 0, len(sorted))
	for _, e := range sorted {
		mws = append(mws, e.MW)
	}

	return mws
}

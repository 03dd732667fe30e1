package aegis

import (
	"sort"
	"sync"
)

// BulkheadManager owns the mapping from pool name to [Bulkhead], creating
// pools lazily on first reference. Options supplied on a later Get for an
// existing name are ignored (first-write-wins); entries live for the process
// lifetime.
type BulkheadManager struct {
	clock Clock
	hooks *Hooks

	mu    sync.Mutex
	pools map[string]*Bulkhead
}

// NewBulkheadManager creates an empty manager. All pools it creates share the
// given clock and hooks.
func NewBulkheadManager(clock Clock, hooks *Hooks) *BulkheadManager {
	return &BulkheadManager{
		clock: clock,
		hooks: hooks,
		pools: make(map[string]*Bulkhead),
	}
}

// Get returns the pool for name, creating it with the given options on first
// reference.
func (m *BulkheadManager) Get(
	name string,
	opts ...BulkheadOption,
) *Bulkhead {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.pools[name]; ok {
		return b
	}

	b := NewBulkhead(name, m.clock, m.hooks, opts...)
	m.pools[name] = b

	return b
}

// Stats returns snapshots of every pool, sorted by name.
func (m *BulkheadManager) Stats() []BulkheadStats {
	m.mu.Lock()
	pools := make([]*Bulkhead, 0, len(m.pools))

	for _, b := range m.pools {
		pools = append(pools, b)
	}
	m.mu.Unlock()

	stats := make([]BulkheadStats, 0, len(pools))
	for _, b := range pools {
		stats = append(stats, b.Stats())
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Name < stats[j].Name
	})

	return stats
}

// Reset resets every pool: counters zeroed, queues drained.
func (m *BulkheadManager) Reset() {
	m.mu.Lock()
	pools := make([]*Bulkhead, 0, len(m.pools))

	for _, b := range m.pools {
		pools = append(pools, b)
	}
	m.mu.Unlock()

	for _, b := range pools {
		b.Reset()
	}
}

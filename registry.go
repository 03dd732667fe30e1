package aegis

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// ReadinessStatus — result of checking all registered pipelines
// ---------------------------------------------------------------------------.

type (
	// ReadinessStatus is the result of checking all registered pipelines.
	ReadinessStatus struct {
		Pipelines []PipelineHealth `json:"pipelines"`
		Ready     bool             `json:"ready"`
	}

	// Registry tracks Reporter instances and derives readiness, aggregate
	// stats, and the administrative reset-all surface.
	//
	// Pattern: Singleton — DefaultRegistry uses sync.OnceValue for safe lazy
	// init; explicit registries can be created for testing or multi-tenant
	// scenarios.
	Registry struct {
		reporters atomic.Pointer[[]Reporter]
		configs   map[string]PipelineConfig
		mu        sync.Mutex
	}
)

//nolint:gochecknoglobals // singleton via sync.OnceValue
var defaultRegistry = sync.OnceValue(NewRegistry)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}

	var empty []Reporter

	r.reporters.Store(&empty)

	return r
}

// Register adds a Reporter to the registry. This is typically called during
// startup by NewPipeline. It is safe for concurrent use but intended for
// initialization only.
func (r *Registry) Register(rep Reporter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.reporters.Load()
	// Copy-on-write so concurrent readers never see a mutating slice.
	updated := make([]Reporter, len(old), len(old)+1)
	copy(updated, old)
	updated = append(updated, rep)
	r.reporters.Store(&updated)
}

// CheckReadiness iterates all registered reporters and builds a
// ReadinessStatus. Ready is false if any pipeline is critically unhealthy.
func (r *Registry) CheckReadiness() ReadinessStatus {
	reporters := *r.reporters.Load()

	status := ReadinessStatus{
		Ready:     true,
		Pipelines: make([]PipelineHealth, 0, len(reporters)),
	}

	for _, rep := range reporters {
		ph := rep.HealthStatus()
		status.Pipelines = append(status.Pipelines, ph)

		if ph.Criticality == CriticalityCritical && !ph.Healthy {
			status.Ready = false
		}
	}

	return status
}

// Stats returns snapshots of every registered pipeline, in registration
// order.
func (r *Registry) Stats() []PipelineStats {
	reporters := *r.reporters.Load()

	stats := make([]PipelineStats, 0, len(reporters))
	for _, rep := range reporters {
		stats = append(stats, rep.Stats())
	}

	return stats
}

// ResetAll performs the administrative reset on every registered pipeline.
func (r *Registry) ResetAll() {
	reporters := *r.reporters.Load()

	for _, rep := range reporters {
		rep.Reset()
	}
}

// DefaultRegistry returns the package-level global registry, creating it on
// first call.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

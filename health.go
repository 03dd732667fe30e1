package aegis

// ---------------------------------------------------------------------------
// Reporter interface
// ---------------------------------------------------------------------------.

type (
	// Reporter is implemented by all Pipeline[T] instances. The interface is
	// non-generic, allowing pipelines with different type parameters to live
	// in one registry.
	Reporter interface {
		// Name returns the pipeline's name.
		Name() string
		// HealthStatus returns the current health state of the pipeline.
		HealthStatus() PipelineHealth
		// Stats returns a snapshot of the pipeline's controls.
		Stats() PipelineStats
		// Reset performs the administrative reset of all controls.
		Reset()
	}

	// Criticality represents how a control's unhealthy state affects
	// readiness.
	Criticality int

	// PipelineHealth represents the current health state of a pipeline.
	PipelineHealth struct {
		Name        string      `json:"name"`
		State       string      `json:"state"`
		Criticality Criticality `json:"criticality"`
		Healthy     bool        `json:"healthy"`
	}
)

const (
	// CriticalityNone means no control reports persistent unhealthy state.
	CriticalityNone Criticality = iota
	// CriticalityDegraded means the pipeline can still serve but is
	// shedding load.
	CriticalityDegraded
	// CriticalityCritical means the guarded dependency cannot reliably
	// serve requests.
	CriticalityCritical
)

// String returns the criticality level as a human-readable string.
func (c Criticality) String() string {
	switch c {
	case CriticalityDegraded:
		return "degraded"
	case CriticalityCritical:
		return "critical"
	default:
		return "none"
	}
}

// ---------------------------------------------------------------------------
// HealthStatus on Pipeline[T]
// ---------------------------------------------------------------------------.

// HealthStatus derives the pipeline's current health by inspecting its
// stateful controls.
func (p *Pipeline[T]) HealthStatus() PipelineHealth {
	status := PipelineHealth{
		Name:    p.name,
		Healthy: true,
		State:   "healthy",
	}

	// Circuit breaker — Critical when open.
	if p.cb != nil {
		switch p.cb.State() {
		case StateOpen:
			status.Healthy = false
			status.Criticality = CriticalityCritical
			status.State = "circuit_open"
		case StateHalfOpen:
			// Recovering, not unhealthy.
			status.State = "circuit_half_open"
		default:
			// Closed.
		}
	}

	// Rate limiter saturation — Degraded (load is being shed, dependency
	// itself may be fine).
	if p.rl != nil && p.rl.Saturated() {
		if status.Criticality < CriticalityDegraded {
			status.Criticality = CriticalityDegraded
		}

		if status.Healthy && status.State == "healthy" {
			status.State = "rate_limited"
		}
	}

	// Bulkhead saturation — Degraded.
	if p.bh != nil && p.bh.Full() {
		if status.Criticality < CriticalityDegraded {
			status.Criticality = CriticalityDegraded
		}

		if status.Healthy && status.State == "healthy" {
			status.State = "bulkhead_full"
		}
	}

	return status
}

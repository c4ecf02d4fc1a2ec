package domain

import "time"

// ProbeSource records which path served a health probe.
type ProbeSource string

const (
	ProbeChannel ProbeSource = "channel"
	ProbeHTTP    ProbeSource = "http"
)

// HealthResult is the outcome of a health check.
type HealthResult struct {
	Healthy   bool
	Timestamp time.Time
	Latency   time.Duration

	// Err is set when the check failed.
	Err error

	// Subsystems reports per-subsystem flags from the server, e.g.
	// {"database": true, "queue": false}.
	Subsystems map[string]bool

	Source   ProbeSource
	Attempts int
}

// TransitionKind tags a health transition.
type TransitionKind int

const (
	// TransitionUnhealthy is emitted on healthy -> unhealthy.
	TransitionUnhealthy TransitionKind = iota + 1

	// TransitionRecovered is emitted on unhealthy -> healthy.
	TransitionRecovered
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionUnhealthy:
		return "unhealthy"
	case TransitionRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// HealthTransition is a change in service health.
type HealthTransition struct {
	Kind   TransitionKind
	Result HealthResult
}

package driven

import (
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// MetricsRecorder receives instrumentation from core services.
type MetricsRecorder interface {
	ConnectionPhase(phase domain.ConnectionPhase)
	ReconnectAttempt()
	ActiveChannels(n int)
	HealthProbe(source domain.ProbeSource, healthy bool, latency time.Duration)
	HealthTransition(kind domain.TransitionKind)
	OptimisticSettled(op domain.OperationType, outcome domain.Settlement)
	PendingOperations(n int)
	RecoveryAttempt(success bool)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ConnectionPhase(domain.ConnectionPhase)                    {}
func (NopMetrics) ReconnectAttempt()                                         {}
func (NopMetrics) ActiveChannels(int)                                        {}
func (NopMetrics) HealthProbe(domain.ProbeSource, bool, time.Duration)       {}
func (NopMetrics) HealthTransition(domain.TransitionKind)                    {}
func (NopMetrics) OptimisticSettled(domain.OperationType, domain.Settlement) {}
func (NopMetrics) PendingOperations(int)                                     {}
func (NopMetrics) RecoveryAttempt(bool)                                      {}

var _ MetricsRecorder = NopMetrics{}

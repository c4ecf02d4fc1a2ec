// Package prometheus exports core service instrumentation as Prometheus
// metrics on a dedicated registry.
package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

const namespace = "docsync"

var _ driven.MetricsRecorder = (*Recorder)(nil)

var phases = []domain.ConnectionPhase{
	domain.PhaseDisconnected,
	domain.PhaseConnecting,
	domain.PhaseConnected,
	domain.PhaseReconnecting,
}

// Recorder implements driven.MetricsRecorder.
type Recorder struct {
	registry *prometheus.Registry

	connectionPhase   *prometheus.GaugeVec
	reconnectAttempts prometheus.Counter
	activeChannels    prometheus.Gauge
	probeTotal        *prometheus.CounterVec
	probeDuration     *prometheus.HistogramVec
	healthTransitions *prometheus.CounterVec
	optimisticSettled *prometheus.CounterVec
	pendingOperations prometheus.Gauge
	recoveryAttempts  *prometheus.CounterVec
}

// NewRecorder registers all collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		connectionPhase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_phase",
			Help:      "1 for the current connection phase, 0 otherwise.",
		}, []string{"phase"}),
		reconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Transport-level reconnection attempts.",
		}),
		activeChannels: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_channels",
			Help:      "Channels with at least one subscriber.",
		}),
		probeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_probes_total",
			Help:      "Health probes by source and outcome.",
		}, []string{"source", "healthy"}),
		probeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_probe_duration_seconds",
			Help:      "Health probe latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"source"}),
		healthTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_transitions_total",
			Help:      "Healthy/unhealthy edges.",
		}, []string{"kind"}),
		optimisticSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_settled_total",
			Help:      "Optimistic operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		pendingOperations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "optimistic_pending",
			Help:      "Optimistic operations awaiting settlement.",
		}),
		recoveryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_attempts_total",
			Help:      "Recovery attempts by outcome.",
		}, []string{"success"}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ConnectionPhase(phase domain.ConnectionPhase) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		r.connectionPhase.WithLabelValues(string(p)).Set(v)
	}
}

func (r *Recorder) ReconnectAttempt() {
	r.reconnectAttempts.Inc()
}

func (r *Recorder) ActiveChannels(n int) {
	r.activeChannels.Set(float64(n))
}

func (r *Recorder) HealthProbe(source domain.ProbeSource, healthy bool, latency time.Duration) {
	r.probeTotal.WithLabelValues(string(source), strconv.FormatBool(healthy)).Inc()
	r.probeDuration.WithLabelValues(string(source)).Observe(latency.Seconds())
}

func (r *Recorder) HealthTransition(kind domain.TransitionKind) {
	r.healthTransitions.WithLabelValues(kind.String()).Inc()
}

func (r *Recorder) OptimisticSettled(op domain.OperationType, outcome domain.Settlement) {
	r.optimisticSettled.WithLabelValues(string(op), string(outcome)).Inc()
}

func (r *Recorder) PendingOperations(n int) {
	r.pendingOperations.Set(float64(n))
}

func (r *Recorder) RecoveryAttempt(success bool) {
	r.recoveryAttempts.WithLabelValues(strconv.FormatBool(success)).Inc()
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

var healthLog = logger.For("health")

// HealthCheckEvent is the channel event answered by the server's health
// handler.
const HealthCheckEvent = "health:check"

// transitionBuffer bounds each transition subscriber. Slow subscribers
// lose transitions rather than stall the probe loop.
const transitionBuffer = 16

// HealthMonitor probes whether the service is actually serving, as opposed
// to whether the transport is open.
type HealthMonitor struct {
	transport driven.Transport
	prober    driven.HealthProber
	config    domain.HealthSettings
	metrics   driven.MetricsRecorder

	mu       sync.Mutex
	healthy  bool
	last     domain.HealthResult
	cancel   context.CancelFunc
	loopDone chan struct{}
	subs     map[int]chan domain.HealthTransition
	nextSub  int
}

// NewHealthMonitor creates a monitor. Either transport or prober may be nil;
// with neither, every check fails with ErrNotConnected.
func NewHealthMonitor(
	transport driven.Transport,
	prober driven.HealthProber,
	config domain.HealthSettings,
	metrics driven.MetricsRecorder,
) *HealthMonitor {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &HealthMonitor{
		transport: transport,
		prober:    prober,
		config:    config,
		metrics:   metrics,
		healthy:   true,
		subs:      make(map[int]chan domain.HealthTransition),
	}
}

// CheckHealth probes the service, retrying up to config.Retries attempts
// with config.RetryDelay between them. Each attempt is cut off after
// config.Timeout.
func (m *HealthMonitor) CheckHealth(ctx context.Context) domain.HealthResult {
	attempts := m.config.Retries
	if attempts < 1 {
		attempts = 1
	}

	var result domain.HealthResult
	for attempt := 1; attempt <= attempts; attempt++ {
		result = m.probe(ctx)
		result.Attempts = attempt
		if result.Healthy {
			break
		}
		healthLog.Debug("probe %d/%d failed: %v", attempt, attempts, result.Err)
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		if err := sleepContext(ctx, m.config.RetryDelay); err != nil {
			break
		}
	}

	m.mu.Lock()
	m.last = result
	m.mu.Unlock()
	return result
}

// probe performs a single attempt.
func (m *HealthMonitor) probe(ctx context.Context) domain.HealthResult {
	start := time.Now()
	attemptCtx := ctx
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	var (
		report driven.HealthReport
		source domain.ProbeSource
		err    error
	)
	switch {
	case m.transport != nil && m.transport.Connected():
		source = domain.ProbeChannel
		var raw []byte
		raw, err = m.transport.EmitWithAck(attemptCtx, HealthCheckEvent, nil)
		if err == nil {
			report, err = driven.DecodeHealthReport(raw)
		}
	case m.prober != nil:
		source = domain.ProbeHTTP
		report, err = m.prober.Probe(attemptCtx)
	default:
		err = domain.ErrNotConnected
	}

	latency := time.Since(start)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", domain.ErrProbeTimeout, m.config.Timeout, err)
	}
	if err == nil && !report.Healthy {
		err = domain.ErrUnhealthy
	}

	m.metrics.HealthProbe(source, err == nil, latency)
	return domain.HealthResult{
		Healthy:    err == nil,
		Timestamp:  start,
		Latency:    latency,
		Err:        err,
		Subsystems: report.Subsystems,
		Source:     source,
	}
}

// MonitorHealth starts a probe loop that checks immediately and then every
// interval. Calling it again replaces the running loop. A non-positive
// interval uses config.Interval.
func (m *HealthMonitor) MonitorHealth(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.config.Interval
	}
	if interval <= 0 {
		interval = domain.DefaultHealthSettings().Interval
	}

	m.stopLoop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.loopDone = done
	m.mu.Unlock()

	healthLog.Debug("monitoring every %s", interval)
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			result := m.CheckHealth(loopCtx)
			if loopCtx.Err() != nil {
				return
			}
			m.observe(result)
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopMonitoring stops the probe loop and closes probe-owned connections.
func (m *HealthMonitor) StopMonitoring() {
	m.stopLoop()
	if m.prober != nil {
		if err := m.prober.Close(); err != nil {
			healthLog.Warn("closing prober: %v", err)
		}
	}
}

func (m *HealthMonitor) stopLoop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.loopDone
	m.cancel, m.loopDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// observe folds a loop result into the health state and emits a
// transition on an edge.
func (m *HealthMonitor) observe(result domain.HealthResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	was := m.healthy
	m.healthy = result.Healthy
	if was == result.Healthy {
		return
	}

	kind := domain.TransitionRecovered
	if !result.Healthy {
		kind = domain.TransitionUnhealthy
		healthLog.Warn("service unhealthy: %v", result.Err)
	} else {
		healthLog.Info("service recovered")
	}
	m.metrics.HealthTransition(kind)

	transition := domain.HealthTransition{Kind: kind, Result: result}
	for id, ch := range m.subs {
		select {
		case ch <- transition:
		default:
			healthLog.Warn("subscriber %d is slow, dropped %s transition", id, kind)
		}
	}
}

// Transitions subscribes to health transitions. Only healthy->unhealthy
// and unhealthy->healthy edges are delivered. Call cancel to unsubscribe;
// it closes the channel.
func (m *HealthMonitor) Transitions() (<-chan domain.HealthTransition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan domain.HealthTransition, transitionBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Healthy reports the state as of the last monitored probe.
func (m *HealthMonitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// LastResult returns the most recent check result.
func (m *HealthMonitor) LastResult() domain.HealthResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

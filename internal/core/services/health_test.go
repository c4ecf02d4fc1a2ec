package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/adapters/driven/transport/memory"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

func fastHealth(retries int) domain.HealthSettings {
	return domain.HealthSettings{
		Timeout:    50 * time.Millisecond,
		Retries:    retries,
		RetryDelay: time.Millisecond,
		Interval:   5 * time.Millisecond,
	}
}

func waitTransition(t *testing.T, ch <-chan domain.HealthTransition) domain.HealthTransition {
	t.Helper()
	select {
	case tr := <-ch:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for health transition")
		return domain.HealthTransition{}
	}
}

func TestCheckHealth_HTTPFallback(t *testing.T) {
	prober := &mockProber{}
	m := NewHealthMonitor(nil, prober, fastHealth(3), nil)

	result := m.CheckHealth(context.Background())

	assert.True(t, result.Healthy)
	assert.NoError(t, result.Err)
	assert.Equal(t, domain.ProbeHTTP, result.Source)
	assert.Equal(t, 1, result.Attempts)
	assert.False(t, result.Timestamp.IsZero())
	assert.Equal(t, result, m.LastResult())
}

func TestCheckHealth_ChannelProbeWhenConnected(t *testing.T) {
	tr := memory.NewTransport()
	defer tr.Close()
	require.NoError(t, tr.Open(context.Background(), driven.DialOptions{}))
	tr.Handle(HealthCheckEvent, func(context.Context, json.RawMessage) (any, error) {
		return map[string]bool{"healthy": true, "database": true}, nil
	})

	prober := &mockProber{}
	metrics := newRecordingMetrics()
	m := NewHealthMonitor(tr, prober, fastHealth(1), metrics)

	result := m.CheckHealth(context.Background())

	assert.True(t, result.Healthy)
	assert.Equal(t, domain.ProbeChannel, result.Source)
	assert.Equal(t, map[string]bool{"database": true}, result.Subsystems)
	assert.Equal(t, 0, prober.callCount())
	assert.Equal(t, []domain.ProbeSource{domain.ProbeChannel}, metrics.probeSources())
}

func TestCheckHealth_FallsBackWhenChannelDown(t *testing.T) {
	tr := memory.NewTransport()
	defer tr.Close()

	prober := &mockProber{}
	m := NewHealthMonitor(tr, prober, fastHealth(1), nil)

	result := m.CheckHealth(context.Background())

	assert.True(t, result.Healthy)
	assert.Equal(t, domain.ProbeHTTP, result.Source)
	assert.Equal(t, 1, prober.callCount())
}

func TestCheckHealth_RetriesUntilHealthy(t *testing.T) {
	prober := &mockProber{}
	prober.setReplies(unhealthy(), unhealthy(), healthy())
	m := NewHealthMonitor(nil, prober, fastHealth(3), nil)

	result := m.CheckHealth(context.Background())

	assert.True(t, result.Healthy)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, prober.callCount())
}

func TestCheckHealth_UnhealthyAfterRetries(t *testing.T) {
	prober := &mockProber{}
	prober.setReplies(unhealthy())
	m := NewHealthMonitor(nil, prober, fastHealth(3), nil)

	result := m.CheckHealth(context.Background())

	assert.False(t, result.Healthy)
	assert.ErrorIs(t, result.Err, domain.ErrUnhealthy)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, map[string]bool{"database": false}, result.Subsystems)
}

func TestCheckHealth_TimeoutAbortsAttempt(t *testing.T) {
	prober := &mockProber{block: true}
	cfg := fastHealth(2)
	cfg.Timeout = 10 * time.Millisecond
	m := NewHealthMonitor(nil, prober, cfg, nil)

	start := time.Now()
	result := m.CheckHealth(context.Background())

	assert.False(t, result.Healthy)
	assert.ErrorIs(t, result.Err, domain.ErrProbeTimeout)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Equal(t, 2, result.Attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCheckHealth_NoProbePath(t *testing.T) {
	m := NewHealthMonitor(nil, nil, fastHealth(1), nil)

	result := m.CheckHealth(context.Background())

	assert.False(t, result.Healthy)
	assert.ErrorIs(t, result.Err, domain.ErrNotConnected)
}

func TestMonitorHealth_EmitsOnlyTransitions(t *testing.T) {
	prober := &mockProber{}
	prober.setReplies(unhealthy())
	metrics := newRecordingMetrics()
	m := NewHealthMonitor(nil, prober, fastHealth(1), metrics)
	assert.True(t, m.Healthy(), "initial state is healthy")

	ch, cancel := m.Transitions()
	defer cancel()

	m.MonitorHealth(context.Background(), 5*time.Millisecond)
	defer m.StopMonitoring()

	tr := waitTransition(t, ch)
	assert.Equal(t, domain.TransitionUnhealthy, tr.Kind)
	assert.False(t, tr.Result.Healthy)

	// Several more unhealthy polls produce no further transitions.
	require.Eventually(t, func() bool { return prober.callCount() >= 5 }, 2*time.Second, time.Millisecond)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected transition %s", extra.Kind)
	default:
	}

	prober.setReplies(healthy())
	tr = waitTransition(t, ch)
	assert.Equal(t, domain.TransitionRecovered, tr.Kind)
	assert.True(t, m.Healthy())
}

func TestMonitorHealth_RestartReplacesLoop(t *testing.T) {
	prober := &mockProber{}
	m := NewHealthMonitor(nil, prober, fastHealth(1), nil)

	m.MonitorHealth(context.Background(), time.Hour)
	m.MonitorHealth(context.Background(), time.Hour)
	require.Eventually(t, func() bool { return prober.callCount() >= 2 }, time.Second, time.Millisecond)

	m.StopMonitoring()
	calls := prober.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, prober.callCount())
}

func TestStopMonitoring_ClosesProber(t *testing.T) {
	prober := &mockProber{}
	m := NewHealthMonitor(nil, prober, fastHealth(1), nil)

	m.MonitorHealth(context.Background(), 5*time.Millisecond)
	m.StopMonitoring()

	assert.Equal(t, 1, prober.closeCount())
}

func TestTransitions_CancelClosesChannel(t *testing.T) {
	m := NewHealthMonitor(nil, &mockProber{}, fastHealth(1), nil)

	ch, cancel := m.Transitions()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

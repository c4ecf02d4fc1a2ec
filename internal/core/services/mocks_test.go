package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// --- Mock implementations shared by service tests ---

// recordingMetrics implements driven.MetricsRecorder and keeps every call.
type recordingMetrics struct {
	mu          sync.Mutex
	phases      []domain.ConnectionPhase
	reconnects  int
	channels    []int
	probes      []domain.ProbeSource
	transitions []domain.TransitionKind
	settled     []domain.Settlement
	pending     []int
	recovered   []bool
}

var _ driven.MetricsRecorder = (*recordingMetrics)(nil)

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{}
}

func (m *recordingMetrics) ConnectionPhase(p domain.ConnectionPhase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = append(m.phases, p)
}

func (m *recordingMetrics) ReconnectAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *recordingMetrics) ActiveChannels(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, n)
}

func (m *recordingMetrics) HealthProbe(source domain.ProbeSource, _ bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, source)
}

func (m *recordingMetrics) HealthTransition(kind domain.TransitionKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, kind)
}

func (m *recordingMetrics) OptimisticSettled(_ domain.OperationType, outcome domain.Settlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = append(m.settled, outcome)
}

func (m *recordingMetrics) PendingOperations(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, n)
}

func (m *recordingMetrics) RecoveryAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered = append(m.recovered, success)
}

func (m *recordingMetrics) recoveries() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.recovered...)
}

func (m *recordingMetrics) settlements() []domain.Settlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Settlement(nil), m.settled...)
}

func (m *recordingMetrics) probeSources() []domain.ProbeSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ProbeSource(nil), m.probes...)
}

func (m *recordingMetrics) reconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// mockProber implements driven.HealthProber with scripted replies.
type mockProber struct {
	mu      sync.Mutex
	replies []proberReply
	calls   int
	closed  int
	block   bool
}

type proberReply struct {
	report driven.HealthReport
	err    error
}

func (m *mockProber) Probe(ctx context.Context) (driven.HealthReport, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	var reply proberReply
	if len(m.replies) > 0 {
		reply = m.replies[0]
		if len(m.replies) > 1 {
			m.replies = m.replies[1:]
		}
	} else {
		reply = proberReply{report: driven.HealthReport{Healthy: true}}
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return driven.HealthReport{}, ctx.Err()
	}
	return reply.report, reply.err
}

func (m *mockProber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockProber) setReplies(replies ...proberReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = replies
}

func (m *mockProber) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockProber) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func healthy() proberReply {
	return proberReply{report: driven.HealthReport{Healthy: true}}
}

func unhealthy() proberReply {
	return proberReply{report: driven.HealthReport{Healthy: false, Subsystems: map[string]bool{"database": false}}}
}

// staticIdentity implements driven.IdentityProvider and driven.IdentityWatcher.
type staticIdentity struct {
	mu       sync.Mutex
	identity domain.Identity
	err      error
	changes  chan struct{}
}

func newStaticIdentity(userID, token string) *staticIdentity {
	return &staticIdentity{
		identity: domain.Identity{UserID: userID, Token: token},
		changes:  make(chan struct{}, 1),
	}
}

func (s *staticIdentity) Identity(context.Context) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.err
}

func (s *staticIdentity) Changes() <-chan struct{} {
	return s.changes
}

func (s *staticIdentity) set(token string) {
	s.mu.Lock()
	s.identity.Token = token
	s.mu.Unlock()
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

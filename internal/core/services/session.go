package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/core/store"
	"github.com/custodia-labs/docsync/internal/logger"
)

var sessionLog = logger.For("session")

// Verify interface compliance.
var (
	_ driving.SyncSession   = (*Session)(nil)
	_ driving.HealthChecker = (*HealthMonitor)(nil)
)

// SessionDeps are the adapters a Session runs on. Transport is required.
type SessionDeps struct {
	Transport driven.Transport
	Identity  driven.IdentityProvider
	Prober    driven.HealthProber
	Actions   driven.DocumentActions
	Lister    driven.DocumentLister
	Metrics   driven.MetricsRecorder

	// Store is created when nil.
	Store *store.Store
}

// Session is the composition root for one surface: it owns the store and
// every service, and wires health transitions, transport exhaustion and
// identity changes into recovery.
type Session struct {
	settings domain.Settings
	store    *store.Store
	identity driven.IdentityProvider
	actions  driven.DocumentActions
	lister   driven.DocumentLister

	registry   *SubscriptionRegistry
	connection *ConnectionManager
	optimistic *OptimisticManager
	health     *HealthMonitor
	recovery   *RecoveryController
	lease      *Lease

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSession wires a session. Nothing is dialled until Start.
func NewSession(settings domain.Settings, deps SessionDeps) *Session {
	st := deps.Store
	if st == nil {
		st = store.New()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}

	registry := NewSubscriptionRegistry(st, deps.Transport, metrics)
	return &Session{
		settings: settings,
		store:    st,
		identity: deps.Identity,
		actions:  deps.Actions,
		lister:   deps.Lister,
		registry: registry,
		connection: NewConnectionManager(
			st, deps.Transport, deps.Identity, registry, NewEventApplier(st),
			settings.Server, settings.Reconnect, metrics,
		),
		optimistic: NewOptimisticManager(st, registry, metrics),
		health:     NewHealthMonitor(deps.Transport, deps.Prober, settings.Health, metrics),
		recovery:   NewRecoveryController(settings.Recovery, metrics),
		lease:      registry.NewLease(),
	}
}

// Start opens the channel, starts health monitoring and the supervisor.
// Calling Start again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrTransportClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	logger.Section("Session")
	err := s.connection.Open(ctx)
	if err != nil {
		sessionLog.Warn("initial connect failed: %v", err)
	}

	transitions, stop := s.health.Transitions()
	s.health.MonitorHealth(runCtx, s.settings.Health.Interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		s.supervise(runCtx, transitions)
	}()
	return err
}

// supervise routes health transitions, transport exhaustion and identity
// changes until the session closes.
func (s *Session) supervise(ctx context.Context, transitions <-chan domain.HealthTransition) {
	var identityChanges <-chan struct{}
	if w, ok := s.identity.(driven.IdentityWatcher); ok {
		identityChanges = w.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case tr, ok := <-transitions:
			if !ok {
				return
			}
			switch tr.Kind {
			case domain.TransitionUnhealthy:
				s.startRecovery(ctx, tr.Result.Err)
			case domain.TransitionRecovered:
				if !s.recovery.State().IsRecovering() {
					s.recovery.ResetRecovery()
				}
			}

		case <-s.connection.Exhausted():
			s.startRecovery(ctx, domain.ErrReconnectExhausted)

		case <-identityChanges:
			sessionLog.Info("identity changed, reconnecting")
			if err := s.connection.Reopen(ctx); err != nil {
				sessionLog.Warn("reconnect after identity change: %v", err)
			}
		}
	}
}

// startRecovery runs the backoff loop in the background. A loop already
// running absorbs the request.
func (s *Session) startRecovery(ctx context.Context, cause error) {
	if s.recovery.State().IsRecovering() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.recoverLoop(ctx, cause)
	}()
}

func (s *Session) recoverLoop(ctx context.Context, cause error) {
	for {
		if s.recovery.AttemptRecovery(ctx, s.reconnectAndVerify, cause) {
			return
		}
		state := s.recovery.State()
		switch {
		case ctx.Err() != nil, state.IsRecovering(), state.Status == domain.RecoveryIdle:
			return
		case !state.CanRetry:
			sessionLog.Error("recovery exhausted after %d attempts; manual retry required", state.Attempts)
			return
		}
		cause = state.LastError
	}
}

// reconnectAndVerify reopens the channel and confirms the service is
// serving.
func (s *Session) reconnectAndVerify(ctx context.Context) error {
	if err := s.connection.Reopen(ctx); err != nil {
		return err
	}
	result := s.health.CheckHealth(ctx)
	if !result.Healthy {
		return result.Err
	}
	return nil
}

// Retry is the manual retry after exhaustion. It resets the recovery
// controller and makes one immediate attempt.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrTransportClosed
	}
	s.recovery.ResetRecovery()
	return s.reconnectAndVerify(ctx)
}

// Refresh loads the confirmed document set from the server. Push events
// keep it current afterwards.
func (s *Session) Refresh(ctx context.Context) error {
	if s.lister == nil {
		return nil
	}
	docs, err := s.lister.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		s.store.AddDocument(doc)
	}
	sessionLog.Debug("loaded %d documents", len(docs))
	return nil
}

// Subscribe takes a reference on ch for this session.
func (s *Session) Subscribe(ctx context.Context, ch domain.Channel) error {
	return s.lease.Acquire(ctx, ch)
}

// Unsubscribe drops this session's reference on ch.
func (s *Session) Unsubscribe(ctx context.Context, ch domain.Channel) error {
	return s.lease.Release(ctx, ch)
}

// Rename optimistically renames a document.
func (s *Session) Rename(ctx context.Context, id, name string) (domain.Document, error) {
	if s.actions == nil {
		return domain.Document{}, fmt.Errorf("%w: no document actions configured", domain.ErrInvalidInput)
	}
	res := s.optimistic.Update(ctx, id, domain.DocumentPatch{Name: &name}, s.actions.UpdateDocument)
	if !res.Success {
		return domain.Document{}, res.Err
	}
	return *res.Document, nil
}

// Delete optimistically deletes a document.
func (s *Session) Delete(ctx context.Context, id string) error {
	if s.actions == nil {
		return fmt.Errorf("%w: no document actions configured", domain.ErrInvalidInput)
	}
	return s.optimistic.Delete(ctx, id, s.actions.DeleteDocument).Err
}

// Documents returns the visible documents.
func (s *Session) Documents() []domain.Document { return s.store.Documents() }

// Socket returns the connection state.
func (s *Session) Socket() domain.SocketState { return s.store.Socket() }

// Recovery returns the recovery state.
func (s *Session) Recovery() domain.RecoveryState { return s.recovery.State() }

// Health returns the most recent health result.
func (s *Session) Health() domain.HealthResult { return s.health.LastResult() }

// OnChange calls fn after every store change.
func (s *Session) OnChange(fn func()) func() {
	return s.store.Subscribe(func(*store.State) { fn() })
}

// Store exposes the session's store for selectors.
func (s *Session) Store() *store.Store { return s.store }

// Optimistic exposes the optimistic update manager.
func (s *Session) Optimistic() *OptimisticManager { return s.optimistic }

// HealthMonitor exposes the health monitor.
func (s *Session) HealthMonitor() *HealthMonitor { return s.health }

// Close cancels recovery waits, releases the session's channels, stops
// health monitoring and closes the channel. Safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.recovery.Close()
	s.wg.Wait()

	var errs []error
	if err := s.lease.ReleaseAll(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("release channels: %w", err))
	}
	s.health.StopMonitoring()
	if err := s.connection.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	sessionLog.Debug("session closed")
	return errors.Join(errs...)
}

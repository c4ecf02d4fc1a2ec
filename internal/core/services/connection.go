package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/store"
	"github.com/custodia-labs/docsync/internal/logger"
)

var connectionLog = logger.For("connection")

// ConnectionManager owns the persistent channel for a session. It mirrors
// transport lifecycle events into the store's socket state, feeds push
// events to the EventApplier and resubscribes active channels after every
// connect.
type ConnectionManager struct {
	store     *store.Store
	transport driven.Transport
	identity  driven.IdentityProvider
	registry  *SubscriptionRegistry
	applier   *EventApplier
	server    domain.ServerSettings
	reconnect domain.ReconnectSettings
	metrics   driven.MetricsRecorder

	mu        sync.Mutex
	consuming bool
	closed    bool
	loopDone  chan struct{}
	exhausted chan struct{}
}

// NewConnectionManager creates a manager. identity and metrics may be nil;
// without an identity provider dials are anonymous.
func NewConnectionManager(
	st *store.Store,
	transport driven.Transport,
	identity driven.IdentityProvider,
	registry *SubscriptionRegistry,
	applier *EventApplier,
	server domain.ServerSettings,
	reconnect domain.ReconnectSettings,
	metrics driven.MetricsRecorder,
) *ConnectionManager {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &ConnectionManager{
		store:     st,
		transport: transport,
		identity:  identity,
		registry:  registry,
		applier:   applier,
		server:    server,
		reconnect: reconnect,
		metrics:   metrics,
		loopDone:  make(chan struct{}),
		exhausted: make(chan struct{}, 1),
	}
}

// Open dials the server. Identity is read fresh for this and every later
// dial. A failed first dial is returned; when reconnection is enabled the
// transport keeps retrying in the background.
func (c *ConnectionManager) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrTransportClosed
	}
	if !c.consuming {
		c.consuming = true
		go c.consume()
	}
	c.mu.Unlock()

	c.store.SetConnecting()
	c.metrics.ConnectionPhase(domain.PhaseConnecting)
	connectionLog.Debug("dialing %s", c.server.URL)

	err := c.transport.Open(ctx, driven.DialOptions{
		URL:                  c.server.URL,
		Auth:                 c.auth,
		Reconnection:         c.reconnect.Enabled,
		ReconnectionDelay:    c.reconnect.Delay,
		ReconnectionAttempts: c.reconnect.Attempts,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", c.server.URL, err)
	}
	return nil
}

// Reopen drops any current connection and dials again with a fresh
// identity and a fresh reconnection budget.
func (c *ConnectionManager) Reopen(ctx context.Context) error {
	select {
	case <-c.exhausted:
	default:
	}
	connectionLog.Info("reopening connection")
	return c.Open(ctx)
}

func (c *ConnectionManager) auth(ctx context.Context) (domain.Identity, error) {
	if c.identity == nil {
		return domain.Identity{}, nil
	}
	id, err := c.identity.Identity(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}
	if !id.Valid() {
		return domain.Identity{}, domain.ErrIdentityUnavailable
	}
	return id, nil
}

// consume runs until the transport closes its event stream.
func (c *ConnectionManager) consume() {
	defer close(c.loopDone)
	for ev := range c.transport.Events() {
		c.handle(ev)
	}
}

func (c *ConnectionManager) handle(ev driven.TransportEvent) {
	switch ev.Kind {
	case driven.EventConnect:
		c.store.SetConnected()
		c.metrics.ConnectionPhase(domain.PhaseConnected)
		connectionLog.Info("connected to %s", c.server.URL)
		if err := c.registry.Resync(context.Background()); err != nil {
			connectionLog.Warn("resubscribe: %v", err)
		}

	case driven.EventDisconnect:
		c.registry.Reset()
		c.store.SetDisconnected(errString(ev.Err))
		c.metrics.ConnectionPhase(domain.PhaseDisconnected)
		connectionLog.Warn("disconnected: %v", ev.Err)

	case driven.EventConnectError:
		c.store.SetConnectError(errString(ev.Err))
		connectionLog.Debug("connect error: %v", ev.Err)

	case driven.EventReconnectAttempt:
		c.store.SetReconnecting()
		c.metrics.ReconnectAttempt()
		c.metrics.ConnectionPhase(domain.PhaseReconnecting)
		connectionLog.Debug("reconnect attempt %d/%d", ev.Attempt, c.reconnect.Attempts)

	case driven.EventReconnectFailed:
		c.registry.Reset()
		c.store.SetDisconnected(errString(ev.Err))
		c.metrics.ConnectionPhase(domain.PhaseDisconnected)
		connectionLog.Error("reconnection exhausted after %d attempts", c.reconnect.Attempts)
		select {
		case c.exhausted <- struct{}{}:
		default:
		}

	case driven.EventMessage:
		// errors are logged by the applier; the event is dropped
		_ = c.applier.Apply(domain.PushEvent{Name: ev.Name, Payload: ev.Payload})
	}
}

// Exhausted receives a value when the transport gives up reconnecting.
// Only Reopen (or a session Retry) revives the channel after that.
func (c *ConnectionManager) Exhausted() <-chan struct{} {
	return c.exhausted
}

// Connected reports whether the channel is open.
func (c *ConnectionManager) Connected() bool {
	return c.transport.Connected()
}

// Close closes the channel and waits for the event loop to drain.
func (c *ConnectionManager) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	consuming := c.consuming
	c.mu.Unlock()

	err := c.transport.Close()
	if consuming {
		<-c.loopDone
	}
	c.registry.Reset()
	c.store.SetDisconnected("")
	c.metrics.ConnectionPhase(domain.PhaseDisconnected)
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

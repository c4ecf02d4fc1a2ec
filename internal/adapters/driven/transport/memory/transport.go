// Package memory provides an in-process driven.Transport.
//
// The transport honours the full reconnection contract but never touches
// the network. Its control methods (Push, Drop, RefuseDials, Handle) play
// the server's part, which makes it the transport of choice for tests and
// offline demos.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure Transport implements the interface.
var _ driven.Transport = (*Transport)(nil)

// ErrDialRefused is returned for dials refused via RefuseDials.
var ErrDialRefused = errors.New("dial refused")

// AckHandler answers an EmitWithAck call for one event name.
type AckHandler func(ctx context.Context, payload json.RawMessage) (any, error)

// Message is an event the client emitted.
type Message struct {
	Event   string
	Payload json.RawMessage
}

// Transport is an in-memory implementation of driven.Transport.
type Transport struct {
	mu         sync.Mutex
	opts       driven.DialOptions
	connected  bool
	closed     bool
	refuse     int
	refuseAll  bool
	handlers   map[string]AckHandler
	emitted    []Message
	identities []domain.Identity
	dials      int

	reconnectCancel context.CancelFunc
	reconnectGen    int
	wg              sync.WaitGroup

	sendMu       sync.Mutex
	events       chan driven.TransportEvent
	done         chan struct{}
	eventsClosed bool
}

// NewTransport creates a disconnected in-memory transport.
func NewTransport() *Transport {
	return &Transport{
		handlers: make(map[string]AckHandler),
		events:   make(chan driven.TransportEvent, 256),
		done:     make(chan struct{}),
	}
}

// Open dials the in-memory server. An already open connection is dropped
// first.
func (t *Transport) Open(ctx context.Context, opts driven.DialOptions) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.ErrTransportClosed
	}
	t.stopReconnectLocked()
	wasConnected := t.connected
	t.connected = false
	t.opts = opts
	t.mu.Unlock()

	t.wg.Wait()
	if wasConnected {
		t.publish(driven.TransportEvent{Kind: driven.EventDisconnect, Err: errors.New("reopen")})
	}

	if err := t.dial(ctx); err != nil {
		t.startReconnect()
		return err
	}
	return nil
}

// dial performs one connection attempt and publishes its outcome.
func (t *Transport) dial(ctx context.Context) error {
	t.mu.Lock()
	opts := t.opts
	t.mu.Unlock()

	var identity domain.Identity
	if opts.Auth != nil {
		id, err := opts.Auth(ctx)
		if err != nil {
			err = fmt.Errorf("auth: %w", err)
			t.publish(driven.TransportEvent{Kind: driven.EventConnectError, Err: err})
			return err
		}
		identity = id
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.ErrTransportClosed
	}
	t.dials++
	t.identities = append(t.identities, identity)
	if t.refuseAll || t.refuse > 0 {
		if t.refuse > 0 {
			t.refuse--
		}
		t.mu.Unlock()
		t.publish(driven.TransportEvent{Kind: driven.EventConnectError, Err: ErrDialRefused})
		return ErrDialRefused
	}
	t.connected = true
	t.mu.Unlock()

	t.publish(driven.TransportEvent{Kind: driven.EventConnect})
	return nil
}

// startReconnect launches the bounded reconnection loop if enabled.
func (t *Transport) startReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || !t.opts.Reconnection || t.reconnectCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.reconnectCancel = cancel
	t.reconnectGen++
	gen := t.reconnectGen
	opts := t.opts
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.reconnect(ctx, gen, opts)
	}()
}

func (t *Transport) reconnect(ctx context.Context, gen int, opts driven.DialOptions) {
	defer func() {
		t.mu.Lock()
		if t.reconnectGen == gen && t.reconnectCancel != nil {
			t.reconnectCancel()
			t.reconnectCancel = nil
		}
		t.mu.Unlock()
	}()

	for attempt := 1; attempt <= opts.ReconnectionAttempts; attempt++ {
		if !sleep(ctx, opts.ReconnectionDelay) {
			return
		}
		t.publish(driven.TransportEvent{Kind: driven.EventReconnectAttempt, Attempt: attempt})
		if err := t.dial(ctx); err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
	t.publish(driven.TransportEvent{Kind: driven.EventReconnectFailed, Err: domain.ErrReconnectExhausted})
}

func (t *Transport) stopReconnectLocked() {
	if t.reconnectCancel != nil {
		t.reconnectCancel()
		t.reconnectCancel = nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Events returns the lifecycle and message stream.
func (t *Transport) Events() <-chan driven.TransportEvent {
	return t.events
}

// publish delivers an event unless the transport is closed.
func (t *Transport) publish(ev driven.TransportEvent) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if t.eventsClosed {
		return
	}
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

// Emit records an outbound event.
func (t *Transport) Emit(_ context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return domain.ErrNotConnected
	}
	t.emitted = append(t.emitted, Message{Event: event, Payload: data})
	return nil
}

// EmitWithAck records the event and answers it with the registered
// handler. Without a handler the call waits for ctx, as an unanswered
// request would.
func (t *Transport) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	if err := t.Emit(ctx, event, payload); err != nil {
		return nil, err
	}
	t.mu.Lock()
	handler, ok := t.handlers[event]
	t.mu.Unlock()

	if !ok {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrAckTimeout, event, ctx.Err())
	}

	data, _ := json.Marshal(payload)
	resp, err := handler(ctx, data)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrAckTimeout, event, ctx.Err())
	}
	return json.Marshal(resp)
}

// Connected reports whether the in-memory connection is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Close stops reconnection and closes the event stream.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	t.stopReconnectLocked()
	t.mu.Unlock()

	close(t.done)
	t.wg.Wait()

	t.sendMu.Lock()
	t.eventsClosed = true
	close(t.events)
	t.sendMu.Unlock()
	return nil
}

// --- Server-side controls ---

// Push delivers a server event to the client.
func (t *Transport) Push(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if !t.Connected() {
		return domain.ErrNotConnected
	}
	t.publish(driven.TransportEvent{Kind: driven.EventMessage, Name: event, Payload: data})
	return nil
}

// Drop severs the connection as a network failure would. Reconnection
// starts if the dial options allow it.
func (t *Transport) Drop(reason error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = false
	t.mu.Unlock()

	t.publish(driven.TransportEvent{Kind: driven.EventDisconnect, Err: reason})
	t.startReconnect()
}

// RefuseDials makes the next n dials fail.
func (t *Transport) RefuseDials(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refuse = n
}

// SetRefuseAll makes every dial fail until switched off.
func (t *Transport) SetRefuseAll(refuse bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refuseAll = refuse
}

// Handle registers the acknowledgement handler for an event name.
func (t *Transport) Handle(event string, h AckHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = h
}

// Emitted returns the events the client sent, in order.
func (t *Transport) Emitted() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.emitted))
	copy(out, t.emitted)
	return out
}

// EmittedNamed returns the payloads of emitted events with the given name.
func (t *Transport) EmittedNamed(event string) []json.RawMessage {
	var out []json.RawMessage
	for _, m := range t.Emitted() {
		if m.Event == event {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Dials returns how many dials reached the server.
func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// Identities returns the identity presented on each dial.
func (t *Transport) Identities() []domain.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Identity, len(t.identities))
	copy(out, t.identities)
	return out
}

// Package websocket implements driven.Transport over a WebSocket using
// JSON frames.
//
// Frames are objects with optional fields:
//
//	{"event": "subscribe", "data": {...}}           client event
//	{"event": "health:check", "data": null, "id": 7} event expecting an ack
//	{"ack": 7, "data": {...}}                        server acknowledgement
//	{"ack": 7, "error": "..."}                       failed acknowledgement
//	{"event": "document:created", "data": {...}}    server push
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

var wsLog = logger.For("websocket")

// Ensure Transport implements the interface.
var _ driven.Transport = (*Transport)(nil)

// Settings tunes the connection. ReadTimeout must exceed PingInterval.
type Settings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration

	// EmitRate and EmitBurst pace outbound frames.
	EmitRate  rate.Limit
	EmitBurst int

	// SendBuffer is the outbound queue length per connection.
	SendBuffer int
}

// DefaultSettings returns production defaults.
func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     25 * time.Second,
		ReadTimeout:      60 * time.Second,
		EmitRate:         50,
		EmitBurst:        20,
		SendBuffer:       64,
	}
}

type frame struct {
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    uint64          `json:"id,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
	Error string          `json:"error,omitempty"`
}

type ackResult struct {
	data json.RawMessage
	err  error
}

// conn is one dialled connection.
type conn struct {
	ws   *gorilla.Conn
	send chan []byte
	done chan struct{}
}

// Transport is a WebSocket implementation of driven.Transport.
type Transport struct {
	settings Settings
	dialer   *gorilla.Dialer
	limiter  *rate.Limiter

	mu        sync.Mutex
	opts      driven.DialOptions
	current   *conn
	runCancel context.CancelFunc
	runDone   chan struct{}
	closed    bool

	nextID atomic.Uint64
	ackMu  sync.Mutex
	acks   map[uint64]chan ackResult

	sendMu       sync.Mutex
	events       chan driven.TransportEvent
	done         chan struct{}
	eventsClosed bool
}

// NewTransport creates a disconnected transport.
func NewTransport(settings Settings) *Transport {
	if settings.SendBuffer <= 0 {
		settings.SendBuffer = DefaultSettings().SendBuffer
	}
	limit := settings.EmitRate
	if limit <= 0 {
		limit = rate.Inf
	}
	return &Transport{
		settings: settings,
		dialer: &gorilla.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: settings.HandshakeTimeout,
		},
		limiter: rate.NewLimiter(limit, max(settings.EmitBurst, 1)),
		acks:    make(map[uint64]chan ackResult),
		events:  make(chan driven.TransportEvent, 256),
		done:    make(chan struct{}),
	}
}

// Open dials opts.URL, replacing any running connection. The first dial
// is bounded by ctx; the connection and its reconnection loop then live
// until Close or the next Open.
func (t *Transport) Open(ctx context.Context, opts driven.DialOptions) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.ErrTransportClosed
	}
	t.opts = opts
	prevCancel, prevDone := t.runCancel, t.runDone
	t.runCancel, t.runDone = nil, nil
	t.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	c, dialErr := t.dial(ctx, opts)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		if c != nil {
			_ = c.ws.Close()
		}
		return domain.ErrTransportClosed
	}
	t.runCancel, t.runDone = cancel, done
	t.mu.Unlock()

	go t.run(runCtx, done, opts, c)
	return dialErr
}

func (t *Transport) dial(ctx context.Context, opts driven.DialOptions) (*conn, error) {
	header := http.Header{}
	if opts.Auth != nil {
		id, err := opts.Auth(ctx)
		if err != nil {
			err = fmt.Errorf("auth: %w", err)
			t.publish(driven.TransportEvent{Kind: driven.EventConnectError, Err: err})
			return nil, err
		}
		if id.Token != "" {
			header.Set("Authorization", "Bearer "+id.Token)
		}
		if id.UserID != "" {
			header.Set("X-User-Id", id.UserID)
		}
	}

	ws, resp, err := t.dialer.DialContext(ctx, opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial %s: %w (status %d)", opts.URL, err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dial %s: %w", opts.URL, err)
		}
		t.publish(driven.TransportEvent{Kind: driven.EventConnectError, Err: err})
		return nil, err
	}
	wsLog.Debug("connected to %s", opts.URL)
	return &conn{
		ws:   ws,
		send: make(chan []byte, t.settings.SendBuffer),
		done: make(chan struct{}),
	}, nil
}

// run serves c and reconnects after drops until ctx ends or the
// reconnection budget is spent.
func (t *Transport) run(ctx context.Context, done chan struct{}, opts driven.DialOptions, c *conn) {
	defer close(done)
	for {
		if c != nil {
			t.setCurrent(c)
			t.publish(driven.TransportEvent{Kind: driven.EventConnect})
			err := t.serve(ctx, c)
			t.setCurrent(nil)
			t.failAcks(domain.ErrNotConnected)
			t.publish(driven.TransportEvent{Kind: driven.EventDisconnect, Err: err})
			if ctx.Err() != nil {
				return
			}
			wsLog.Warn("connection lost: %v", err)
		}
		if !opts.Reconnection {
			return
		}
		c = t.reconnect(ctx, opts)
		if c == nil {
			return
		}
	}
}

func (t *Transport) reconnect(ctx context.Context, opts driven.DialOptions) *conn {
	for attempt := 1; attempt <= opts.ReconnectionAttempts; attempt++ {
		if !sleep(ctx, opts.ReconnectionDelay) {
			return nil
		}
		t.publish(driven.TransportEvent{Kind: driven.EventReconnectAttempt, Attempt: attempt})
		c, err := t.dial(ctx, opts)
		if err == nil {
			return c
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	t.publish(driven.TransportEvent{Kind: driven.EventReconnectFailed, Err: domain.ErrReconnectExhausted})
	return nil
}

// serve pumps frames until the connection fails or ctx ends.
func (t *Transport) serve(ctx context.Context, c *conn) error {
	defer close(c.done)

	readTimeout := t.settings.ReadTimeout
	if readTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- t.writeLoop(ctx, c)
	}()
	go func() {
		defer wg.Done()
		errs <- t.readLoop(c)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errs:
	}
	_ = c.ws.Close()
	wg.Wait()
	return err
}

func (t *Transport) writeLoop(ctx context.Context, c *conn) error {
	var ping <-chan time.Time
	if t.settings.PingInterval > 0 {
		ticker := time.NewTicker(t.settings.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			msg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "")
			_ = c.ws.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(time.Second))
			return ctx.Err()
		case msg := <-c.send:
			if t.settings.WriteTimeout > 0 {
				_ = c.ws.SetWriteDeadline(time.Now().Add(t.settings.WriteTimeout))
			}
			if err := c.ws.WriteMessage(gorilla.TextMessage, msg); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ping:
			deadline := time.Now().Add(t.settings.WriteTimeout)
			if err := c.ws.WriteControl(gorilla.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (t *Transport) readLoop(c *conn) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		t.handleFrame(data)
	}
}

func (t *Transport) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		wsLog.Warn("dropping malformed frame: %v", err)
		return
	}
	switch {
	case f.Ack != 0:
		res := ackResult{data: f.Data}
		if f.Error != "" {
			res.err = fmt.Errorf("%w: %s", domain.ErrServerAction, f.Error)
		}
		t.deliverAck(f.Ack, res)
	case f.Event != "":
		t.publish(driven.TransportEvent{Kind: driven.EventMessage, Name: f.Event, Payload: f.Data})
	default:
		wsLog.Debug("ignoring frame without event or ack")
	}
}

// Events returns the lifecycle and message stream.
func (t *Transport) Events() <-chan driven.TransportEvent {
	return t.events
}

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

// Emit queues an event on the current connection.
func (t *Transport) Emit(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return t.write(ctx, frame{Event: event, Data: data})
}

// EmitWithAck sends an event and waits for the matching ack frame.
func (t *Transport) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}

	id := t.nextID.Add(1)
	ch := make(chan ackResult, 1)
	t.ackMu.Lock()
	t.acks[id] = ch
	t.ackMu.Unlock()
	defer func() {
		t.ackMu.Lock()
		delete(t.acks, id)
		t.ackMu.Unlock()
	}()

	if err := t.write(ctx, frame{Event: event, Data: data, ID: id}); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrAckTimeout, event, ctx.Err())
	}
}

func (t *Transport) write(ctx context.Context, f frame) error {
	c := t.getCurrent()
	if c == nil {
		return domain.ErrNotConnected
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("emit %s: %w", f.Event, err)
	}
	msg, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return domain.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) deliverAck(id uint64, res ackResult) {
	t.ackMu.Lock()
	ch, ok := t.acks[id]
	delete(t.acks, id)
	t.ackMu.Unlock()
	if !ok {
		wsLog.Debug("late ack %d", id)
		return
	}
	ch <- res
}

func (t *Transport) failAcks(err error) {
	t.ackMu.Lock()
	defer t.ackMu.Unlock()
	for id, ch := range t.acks {
		ch <- ackResult{err: err}
		delete(t.acks, id)
	}
}

func (t *Transport) setCurrent(c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = c
}

func (t *Transport) getCurrent() *conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Connected reports whether a connection is being served.
func (t *Transport) Connected() bool {
	return t.getCurrent() != nil
}

// Close stops the connection and reconnection loop and closes the event
// stream.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel, done := t.runCancel, t.runDone
	t.mu.Unlock()

	close(t.done)
	if cancel != nil {
		cancel()
		<-done
	}

	t.sendMu.Lock()
	t.eventsClosed = true
	close(t.events)
	t.sendMu.Unlock()
	return nil
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

// IsCloseError reports whether err is a normal WebSocket close.
func IsCloseError(err error) bool {
	var ce *gorilla.CloseError
	return errors.As(err, &ce) && ce.Code == gorilla.CloseNormalClosure
}

package driven

import (
	"context"
	"encoding/json"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// TransportEventKind tags a TransportEvent.
type TransportEventKind int

const (
	// EventConnect is emitted whenever a dial succeeds, including reconnects.
	EventConnect TransportEventKind = iota + 1

	// EventDisconnect is emitted when an open channel drops.
	EventDisconnect

	// EventConnectError is emitted when a dial fails.
	EventConnectError

	// EventReconnectAttempt is emitted before each reconnection dial.
	EventReconnectAttempt

	// EventReconnectFailed is emitted once the reconnection budget is spent.
	// The transport stays disconnected until Open is called again.
	EventReconnectFailed

	// EventMessage carries a server push event.
	EventMessage
)

func (k TransportEventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventConnectError:
		return "connect_error"
	case EventReconnectAttempt:
		return "reconnect_attempt"
	case EventReconnectFailed:
		return "reconnect_failed"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// TransportEvent is a lifecycle or message event from the transport.
type TransportEvent struct {
	Kind TransportEventKind

	// Err is set for disconnect, connect_error and reconnect_failed.
	Err error

	// Attempt is the 1-based reconnection attempt for EventReconnectAttempt.
	Attempt int

	// Name and Payload are set for EventMessage.
	Name    string
	Payload json.RawMessage
}

// AuthFunc returns the identity to present on a dial. It is called before
// every dial so a changed identity is never served from a cache.
type AuthFunc func(ctx context.Context) (domain.Identity, error)

// DialOptions configures Open.
//
// Reconnection contract: when an open channel drops and Reconnection is
// true, the transport retries at most ReconnectionAttempts times, waiting
// ReconnectionDelay before each dial. It emits EventReconnectAttempt before
// each dial and EventReconnectFailed when the budget is spent.
type DialOptions struct {
	URL                  string
	Auth                 AuthFunc
	Reconnection         bool
	ReconnectionDelay    time.Duration
	ReconnectionAttempts int
}

// Transport is a persistent bidirectional event channel.
type Transport interface {
	// Open dials the channel. It returns after the first dial attempt,
	// with the dial error if that attempt failed. Reconnection then
	// proceeds in the background per DialOptions.
	Open(ctx context.Context, opts DialOptions) error

	// Events returns the lifecycle and message stream. The channel is
	// closed by Close.
	Events() <-chan TransportEvent

	// Emit sends an event without waiting for acknowledgement.
	Emit(ctx context.Context, event string, payload any) error

	// EmitWithAck sends an event and waits for the server's acknowledgement.
	// The wait is bounded by ctx.
	EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error)

	// Connected reports whether the channel is currently open.
	Connected() bool

	// Close tears down the channel and stops reconnection. Safe to call twice.
	Close() error
}

package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown channel kind or event name.
	ErrUnsupportedType = errors.New("unsupported type")

	// Connection Errors.

	// ErrNotConnected indicates the channel is not open.
	ErrNotConnected = errors.New("not connected")

	// ErrTransportClosed indicates the transport has been closed for good.
	ErrTransportClosed = errors.New("transport closed")

	// ErrAckTimeout indicates the server did not acknowledge an emit in time.
	ErrAckTimeout = errors.New("acknowledgement timeout")

	// ErrReconnectExhausted indicates the transport spent its reconnection budget.
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")

	// ErrIdentityUnavailable indicates no user identity or token is available.
	ErrIdentityUnavailable = errors.New("identity unavailable")

	// Health Errors.

	// ErrUnhealthy indicates the service answered but reported itself unhealthy.
	ErrUnhealthy = errors.New("service unhealthy")

	// ErrProbeTimeout indicates a health probe exceeded its timeout.
	ErrProbeTimeout = errors.New("health probe timeout")

	// Recovery Errors.

	// ErrRecoveryInProgress indicates a recovery is already running.
	ErrRecoveryInProgress = errors.New("recovery in progress")

	// ErrRecoveryExhausted indicates the recovery budget is spent and a
	// manual retry is required.
	ErrRecoveryExhausted = errors.New("recovery attempts exhausted")

	// Optimistic Update Errors.

	// ErrServerAction indicates the server action panicked or returned
	// an unusable result.
	ErrServerAction = errors.New("server action failed")
)

package driving

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// SyncSession keeps one surface's view of documents in sync with the
// server over a persistent channel.
type SyncSession interface {
	// Start opens the channel and begins health monitoring. A failed first
	// dial is returned, but reconnection and recovery continue in the
	// background.
	Start(ctx context.Context) error

	// Retry resets recovery and reopens the channel. Used after the
	// reconnection budget is exhausted.
	Retry(ctx context.Context) error

	// Refresh loads the confirmed document set from the server.
	Refresh(ctx context.Context) error

	// Subscribe and Unsubscribe manage the session's interest in a channel.
	Subscribe(ctx context.Context, ch domain.Channel) error
	Unsubscribe(ctx context.Context, ch domain.Channel) error

	// Rename and Delete mutate a document optimistically through the
	// server actions.
	Rename(ctx context.Context, id, name string) (domain.Document, error)
	Delete(ctx context.Context, id string) error

	// Documents returns the visible documents.
	Documents() []domain.Document

	// Socket returns the connection state.
	Socket() domain.SocketState

	// Recovery returns the recovery controller state.
	Recovery() domain.RecoveryState

	// Health returns the most recent health check result.
	Health() domain.HealthResult

	// OnChange calls fn after every state change until cancel is called.
	OnChange(fn func()) (cancel func())

	// Close releases subscriptions, stops monitoring and closes the channel.
	Close() error
}

// HealthChecker runs one-shot health checks.
type HealthChecker interface {
	CheckHealth(ctx context.Context) domain.HealthResult
}

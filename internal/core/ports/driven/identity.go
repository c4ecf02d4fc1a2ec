package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// IdentityProvider supplies the current user identity and bearer token.
type IdentityProvider interface {
	Identity(ctx context.Context) (domain.Identity, error)
}

// IdentityWatcher is implemented by providers that can signal identity
// changes, e.g. a re-login rewriting the session file.
type IdentityWatcher interface {
	// Changes receives a value each time the identity may have changed.
	Changes() <-chan struct{}
}

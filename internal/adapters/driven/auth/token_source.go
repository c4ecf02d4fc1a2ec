package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

var _ driven.IdentityProvider = (*TokenSourceProvider)(nil)

// TokenSourceProvider pairs a fixed user id with tokens from an
// oauth2.TokenSource. Tokens are cached and refreshed on expiry.
type TokenSourceProvider struct {
	userID string
	ts     oauth2.TokenSource
}

// NewTokenSourceProvider wraps ts so tokens are reused until they expire.
func NewTokenSourceProvider(userID string, ts oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{
		userID: userID,
		ts:     oauth2.ReuseTokenSource(nil, ts),
	}
}

// NewStaticProvider returns a provider for a token that never refreshes.
func NewStaticProvider(userID, token string) *TokenSourceProvider {
	return NewTokenSourceProvider(userID, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// NewClientCredentialsProvider fetches tokens with the OAuth2
// client-credentials grant described by settings.
func NewClientCredentialsProvider(ctx context.Context, settings domain.AuthSettings) *TokenSourceProvider {
	cfg := &clientcredentials.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		TokenURL:     settings.TokenURL,
		Scopes:       settings.Scopes,
	}
	return NewTokenSourceProvider(settings.UserID, cfg.TokenSource(ctx))
}

// Identity returns the user id with a currently valid access token.
func (p *TokenSourceProvider) Identity(ctx context.Context) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	tok, err := p.ts.Token()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}
	id := domain.Identity{UserID: p.userID, Token: tok.AccessToken}
	if !id.Valid() {
		return domain.Identity{}, fmt.Errorf("%w: user id and token are required", domain.ErrIdentityUnavailable)
	}
	return id, nil
}

// FromSettings picks the provider the settings describe: the session file
// first, then client credentials. It returns nil when neither is configured.
func FromSettings(ctx context.Context, settings domain.AuthSettings) driven.IdentityProvider {
	switch {
	case settings.SessionFile != "":
		return NewFileProvider(settings.SessionFile)
	case settings.TokenURL != "":
		return NewClientCredentialsProvider(ctx, settings)
	default:
		return nil
	}
}

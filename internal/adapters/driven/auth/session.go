package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// Session is the on-disk form of a logged-in identity.
type Session struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Identity converts the session, rejecting incomplete or expired ones.
func (s Session) Identity() (domain.Identity, error) {
	tok := &oauth2.Token{AccessToken: s.Token, Expiry: s.ExpiresAt}
	if !tok.Valid() {
		return domain.Identity{}, fmt.Errorf("%w: session token missing or expired", domain.ErrIdentityUnavailable)
	}
	id := domain.Identity{UserID: s.UserID, Token: s.Token}
	if !id.Valid() {
		return domain.Identity{}, fmt.Errorf("%w: session has no user id", domain.ErrIdentityUnavailable)
	}
	return id, nil
}

// ReadSession loads a session file.
func ReadSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("%w: read session: %w", domain.ErrIdentityUnavailable, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("%w: decode session: %w", domain.ErrIdentityUnavailable, err)
	}
	return s, nil
}

// WriteSession stores a session file with owner-only permissions. The file
// is replaced atomically so watchers never observe a partial write.
func WriteSession(path string, s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck // chmod error takes precedence
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

var (
	_ driven.IdentityProvider = (*FileProvider)(nil)
	_ driven.IdentityWatcher  = (*FileProvider)(nil)
)

var authLog = logger.For("auth")

// FileProvider reads the identity from a session file and caches it until
// the file changes on disk.
type FileProvider struct {
	path string

	mu     sync.RWMutex
	cached *Session

	changes chan struct{}

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileProvider creates a provider for the session file at path.
// Call Watch to receive change notifications.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		path:    filepath.Clean(path),
		changes: make(chan struct{}, 1),
	}
}

// Path returns the session file location.
func (p *FileProvider) Path() string {
	return p.path
}

// Identity returns the identity from the cached session, reading the file
// on a miss. Expiry is checked on every call; an expired session is dropped
// from the cache so the next call rereads the file.
func (p *FileProvider) Identity(ctx context.Context) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}

	p.mu.RLock()
	cached := p.cached
	p.mu.RUnlock()
	if cached != nil {
		id, err := cached.Identity()
		if err == nil {
			return id, nil
		}
		p.drop(cached)
		return domain.Identity{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached.Identity()
	}

	s, err := ReadSession(p.path)
	if err != nil {
		return domain.Identity{}, err
	}
	id, err := s.Identity()
	if err != nil {
		return domain.Identity{}, err
	}
	p.cached = &s
	return id, nil
}

// drop clears the cache if it still holds s.
func (p *FileProvider) drop(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == s {
		p.cached = nil
	}
}

// Changes signals after the session file is written, replaced or removed.
// Signals coalesce; a slow reader sees one pending notification.
func (p *FileProvider) Changes() <-chan struct{} {
	return p.changes
}

// Watch starts watching the session file. The parent directory is watched
// so atomic replacements via rename are seen. Calling Watch twice is a no-op.
func (p *FileProvider) Watch() error {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create session watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close() //nolint:errcheck // add error takes precedence
		return fmt.Errorf("watch session dir: %w", err)
	}

	p.watcher = w
	p.done = make(chan struct{})
	p.wg.Add(1)
	go p.loop(w, p.done)
	return nil
}

func (p *FileProvider) loop(w *fsnotify.Watcher, done <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != p.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			authLog.Debug("session file %s: %s", ev.Op, p.path)
			p.invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			authLog.Warn("session watcher: %v", err)
		}
	}
}

// invalidate drops the cache and signals listeners without blocking.
func (p *FileProvider) invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()

	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// Close stops the watcher.
func (p *FileProvider) Close() error {
	p.watchMu.Lock()
	w := p.watcher
	done := p.done
	p.watcher = nil
	p.watchMu.Unlock()

	if w == nil {
		return nil
	}
	close(done)
	err := w.Close()
	p.wg.Wait()
	return err
}

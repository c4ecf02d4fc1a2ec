package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeSession is a scriptable driving.SyncSession.
type fakeSession struct {
	mu sync.Mutex

	docs       []domain.Document
	socket     domain.SocketState
	health     domain.HealthResult
	recovery   domain.RecoveryState
	startErr   error
	refreshErr error
	renameErr  error
	deleteErr  error

	started    bool
	refreshed  int
	retries    int
	subscribed []domain.Channel
	renamed    map[string]string
	deleted    []string
	closed     bool
	listeners  []func()
}

var _ driving.SyncSession = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{
		socket:   domain.SocketState{Phase: domain.PhaseConnected, Connected: true},
		health:   domain.HealthResult{Healthy: true},
		recovery: domain.RecoveryState{Status: domain.RecoveryIdle, CanRetry: true},
		renamed:  make(map[string]string),
	}
}

func (f *fakeSession) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeSession) Retry(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	f.recovery = domain.RecoveryState{Status: domain.RecoveryIdle, CanRetry: true}
	return nil
}

func (f *fakeSession) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return f.refreshErr
}

func (f *fakeSession) Subscribe(_ context.Context, ch domain.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, ch)
	if f.socket.Subscriptions == nil {
		f.socket.Subscriptions = make(map[domain.Channel]int)
	}
	f.socket.Subscriptions[ch]++
	return nil
}

func (f *fakeSession) Unsubscribe(_ context.Context, ch domain.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.socket.Subscriptions, ch)
	return nil
}

func (f *fakeSession) Rename(_ context.Context, id, name string) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return domain.Document{}, f.renameErr
	}
	f.renamed[id] = name
	return domain.Document{ID: id, Name: name}, nil
}

func (f *fakeSession) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSession) Documents() []domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Document(nil), f.docs...)
}

func (f *fakeSession) Socket() domain.SocketState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.socket.Clone()
}

func (f *fakeSession) Recovery() domain.RecoveryState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recovery
}

func (f *fakeSession) Health() domain.HealthResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

func (f *fakeSession) OnChange(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// update mutates the fake and notifies listeners like the store would.
func (f *fakeSession) update(fn func(f *fakeSession)) {
	f.mu.Lock()
	fn(f)
	listeners := append([]func(){}, f.listeners...)
	f.mu.Unlock()
	for _, l := range listeners {
		l()
	}
}

func (f *fakeSession) retryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retries
}

type fakeChecker struct {
	result domain.HealthResult
}

func (c fakeChecker) CheckHealth(context.Context) domain.HealthResult {
	return c.result
}

// setupTest points the CLI at a temp config file and fake adapters.
// It returns the config path.
func setupTest(t *testing.T, sess *fakeSession, checker driving.HealthChecker) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")

	origSession, origHealth := sessionFactory, healthFactory
	origMetrics, origRetry, origVerbose := watchMetricsAddr, watchAutoRetry, verbose
	t.Cleanup(func() {
		sessionFactory, healthFactory = origSession, origHealth
		watchMetricsAddr, watchAutoRetry, verbose = origMetrics, origRetry, origVerbose
		configPath = ""
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})

	sessionFactory = func(context.Context, domain.Settings, driven.MetricsRecorder) (driving.SyncSession, error) {
		return sess, nil
	}
	healthFactory = func(domain.Settings) (driving.HealthChecker, func(), error) {
		return checker, func() {}, nil
	}
	return path
}

func writeTestConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// run executes the root command with --config pointing at path.
func run(ctx context.Context, path string, args ...string) (string, error) {
	buf := new(syncBuffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append(args, "--config", path))
	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

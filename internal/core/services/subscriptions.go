package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/store"
	"github.com/custodia-labs/docsync/internal/logger"
)

var subscriptionLog = logger.For("subscriptions")

// Channel events understood by the server.
const (
	SubscribeEvent   = "subscribe"
	UnsubscribeEvent = "unsubscribe"
)

type subscriptionRequest struct {
	Channel domain.Channel `json:"channel"`
}

// SubscriptionRegistry is the single owner of which channels are active.
// Reference counts live in the store; only the 0->1 and 1->0 edges reach
// the transport.
type SubscriptionRegistry struct {
	store     *store.Store
	transport driven.Transport
	metrics   driven.MetricsRecorder

	mu sync.Mutex
	// sent holds the channels subscribed on the current connection.
	sent map[domain.Channel]bool
	// leases holding at least one channel; Remap renames their entries.
	leases map[*Lease]struct{}
}

// NewSubscriptionRegistry creates a registry. metrics may be nil.
func NewSubscriptionRegistry(st *store.Store, transport driven.Transport, metrics driven.MetricsRecorder) *SubscriptionRegistry {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &SubscriptionRegistry{
		store:     st,
		transport: transport,
		metrics:   metrics,
		sent:      make(map[domain.Channel]bool),
		leases:    make(map[*Lease]struct{}),
	}
}

// Acquire takes a reference on ch. The first holder subscribes over the
// transport; while disconnected the subscribe is deferred to Resync.
func (r *SubscriptionRegistry) Acquire(ctx context.Context, ch domain.Channel) error {
	if _, err := domain.ParseChannel(string(ch)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acquireLocked(ctx, ch)
}

func (r *SubscriptionRegistry) acquireLocked(ctx context.Context, ch domain.Channel) error {
	first := r.store.AddSubscription(ch)
	r.metrics.ActiveChannels(len(r.store.ActiveChannels()))
	if !first {
		return nil
	}
	return r.subscribeLocked(ctx, ch)
}

// Release drops a reference on ch. The last holder unsubscribes.
func (r *SubscriptionRegistry) Release(ctx context.Context, ch domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(ctx, ch)
}

func (r *SubscriptionRegistry) releaseLocked(ctx context.Context, ch domain.Channel) error {
	last := r.store.RemoveSubscription(ch)
	r.metrics.ActiveChannels(len(r.store.ActiveChannels()))
	if !last || !r.sent[ch] {
		return nil
	}
	delete(r.sent, ch)
	if !r.transport.Connected() {
		return nil
	}
	if err := r.transport.Emit(ctx, UnsubscribeEvent, subscriptionRequest{Channel: ch}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", ch, err)
	}
	subscriptionLog.Debug("unsubscribed %s", ch)
	return nil
}

// Resync subscribes every active channel not yet subscribed on the
// current connection. Called after each connect.
func (r *SubscriptionRegistry) Resync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, ch := range r.store.ActiveChannels() {
		if r.sent[ch] {
			continue
		}
		if err := r.subscribeLocked(ctx, ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset forgets what was subscribed on the previous connection. The server
// drops subscriptions with the connection.
func (r *SubscriptionRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.sent)
}

func (r *SubscriptionRegistry) subscribeLocked(ctx context.Context, ch domain.Channel) error {
	if !r.transport.Connected() {
		subscriptionLog.Debug("deferring subscribe %s until connected", ch)
		return nil
	}
	if err := r.transport.Emit(ctx, SubscribeEvent, subscriptionRequest{Channel: ch}); err != nil {
		return fmt.Errorf("subscribe %s: %w", ch, err)
	}
	r.sent[ch] = true
	subscriptionLog.Debug("subscribed %s", ch)
	return nil
}

// Remap moves the per-connection subscription record, and every lease
// holding the temporary channel, after a temporary document ID was
// replaced by its canonical ID.
func (r *SubscriptionRegistry) Remap(ctx context.Context, tempID, canonicalID string) error {
	oldCh := domain.DocumentChannel(tempID)
	newCh := domain.DocumentChannel(canonicalID)
	r.mu.Lock()
	defer r.mu.Unlock()

	for l := range r.leases {
		l.rename(oldCh, newCh)
	}

	if r.sent[oldCh] {
		delete(r.sent, oldCh)
		if r.transport.Connected() {
			if err := r.transport.Emit(ctx, UnsubscribeEvent, subscriptionRequest{Channel: oldCh}); err != nil {
				subscriptionLog.Warn("unsubscribe %s: %v", oldCh, err)
			}
		}
	}
	if r.store.Socket().IsSubscribed(newCh) && !r.sent[newCh] {
		return r.subscribeLocked(ctx, newCh)
	}
	return nil
}

// Lease records the channels one component holds so teardown can release
// exactly those. Lock order is registry before lease.
type Lease struct {
	registry *SubscriptionRegistry

	mu   sync.Mutex
	held map[domain.Channel]int
}

// NewLease creates an empty lease on the registry.
func (r *SubscriptionRegistry) NewLease() *Lease {
	return &Lease{registry: r, held: make(map[domain.Channel]int)}
}

// Acquire takes a reference through the lease. A failed subscribe still
// holds the reference; Resync retries it on the next connect.
func (l *Lease) Acquire(ctx context.Context, ch domain.Channel) error {
	if _, err := domain.ParseChannel(string(ch)); err != nil {
		return err
	}
	r := l.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.acquireLocked(ctx, ch)
	l.mu.Lock()
	l.held[ch]++
	l.mu.Unlock()
	r.leases[l] = struct{}{}
	return err
}

// rename moves references on oldCh to newCh. Caller holds the registry lock.
func (l *Lease) rename(oldCh, newCh domain.Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.held[oldCh]; n > 0 {
		delete(l.held, oldCh)
		l.held[newCh] += n
	}
}

// Release drops one reference held through the lease. Channels the lease
// does not hold are ignored.
func (l *Lease) Release(ctx context.Context, ch domain.Channel) error {
	r := l.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	l.mu.Lock()
	if l.held[ch] == 0 {
		l.mu.Unlock()
		return nil
	}
	l.held[ch]--
	if l.held[ch] == 0 {
		delete(l.held, ch)
	}
	if len(l.held) == 0 {
		delete(r.leases, l)
	}
	l.mu.Unlock()
	return r.releaseLocked(ctx, ch)
}

// ReleaseAll drops every reference held through the lease.
func (l *Lease) ReleaseAll(ctx context.Context) error {
	r := l.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	l.mu.Lock()
	held := l.held
	l.held = make(map[domain.Channel]int)
	l.mu.Unlock()
	delete(r.leases, l)

	var errs []error
	for ch, n := range held {
		for range n {
			if err := r.releaseLocked(ctx, ch); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Channels returns the channels held through the lease, sorted.
func (l *Lease) Channels() []domain.Channel {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Channel, 0, len(l.held))
	for ch := range l.held {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

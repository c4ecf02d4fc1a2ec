package store

import (
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// Listener is called with each new snapshot, in dispatch order.
// A listener may dispatch further actions; their notifications are
// delivered after the current one. Notification is synchronous for the
// goroutine that finds no delivery in progress. When another goroutine is
// already delivering, dispatch queues its snapshot and returns; the
// delivering goroutine notifies listeners of it, still in order.
type Listener func(st *State)

// Store is the single mutable container for client state.
type Store struct {
	mu        sync.Mutex
	state     *State
	listeners map[uint64]Listener
	nextID    uint64

	// queue holds snapshots awaiting notification; draining is true while
	// some goroutine is delivering them.
	queue    []*State
	draining bool

	sel *selectors
}

// New creates an empty store.
func New() *Store {
	return &Store{
		state:     newState(),
		listeners: make(map[uint64]Listener),
		sel:       newSelectors(),
	}
}

// State returns the current snapshot.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// reducer computes the next state. It returns the input unchanged (and
// false) for a no-op transition.
type reducer func(st *State) (*State, bool)

// dispatch applies r atomically and delivers notifications in order.
func (s *Store) dispatch(r reducer) bool {
	s.mu.Lock()
	next, changed := r(s.state)
	if changed {
		s.state = next
		s.queue = append(s.queue, next)
	}
	if s.draining {
		s.mu.Unlock()
		return changed
	}
	s.draining = true
	for len(s.queue) > 0 {
		st := s.queue[0]
		s.queue = s.queue[1:]
		listeners := make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
		s.mu.Unlock()
		for _, l := range listeners {
			l(st)
		}
		s.mu.Lock()
	}
	s.queue = nil
	s.draining = false
	s.mu.Unlock()
	return changed
}

// Selectors bound to the current snapshot. Results are memoised and
// referentially stable while their inputs are unchanged.

// Documents returns the visible documents.
func (s *Store) Documents() []domain.Document {
	return s.sel.documents.Select(s.State())
}

// Document returns a visible document by ID.
func (s *Store) Document(id string) (domain.Document, bool) {
	return VisibleDocument(s.State(), id)
}

// DocumentsByStatus returns visible documents with the given status.
func (s *Store) DocumentsByStatus(status domain.DocumentStatus) []domain.Document {
	return s.sel.byStatus(status).Select(s.State())
}

// Enhancement returns the enhancement for a document.
func (s *Store) Enhancement(documentID string) (domain.Enhancement, bool) {
	return Enhancement(s.State(), documentID)
}

// PendingOperations returns unsettled operations in operation order.
func (s *Store) PendingOperations() []domain.OptimisticUpdate {
	return s.sel.pending.Select(s.State())
}

// IsPending reports whether a document has an unsettled operation.
func (s *Store) IsPending(documentID string) bool {
	return IsPending(s.State(), documentID)
}

// Socket returns a copy of the socket state.
func (s *Store) Socket() domain.SocketState {
	return Socket(s.State())
}

// ActiveChannels returns subscribed channels in sorted order.
func (s *Store) ActiveChannels() []domain.Channel {
	return s.sel.channels.Select(s.State())
}

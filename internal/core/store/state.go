package store

import (
	"sync/atomic"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// revisions are drawn from one counter so memoised selectors can never
// confuse snapshots from two different stores.
var revCounter atomic.Uint64

func nextRev() uint64 {
	return revCounter.Add(1)
}

// State is an immutable snapshot. Never modify a State or the maps it
// holds; actions copy what they change.
type State struct {
	documents    map[string]domain.Document
	enhancements map[string]domain.Enhancement // keyed by document ID
	pending      map[string]domain.OptimisticUpdate
	socket       domain.SocketState

	docRev     uint64
	enhRev     uint64
	pendingRev uint64
	socketRev  uint64

	stats Stats
}

// Stats counts settled optimistic operations over the life of the store.
type Stats struct {
	Committed  int
	RolledBack int
	Removed    int
}

func newState() *State {
	return &State{
		documents:    make(map[string]domain.Document),
		enhancements: make(map[string]domain.Enhancement),
		pending:      make(map[string]domain.OptimisticUpdate),
		socket: domain.SocketState{
			Phase:         domain.PhaseDisconnected,
			Subscriptions: make(map[domain.Channel]int),
		},
		docRev:     nextRev(),
		enhRev:     nextRev(),
		pendingRev: nextRev(),
		socketRev:  nextRev(),
	}
}

// clone returns a shallow copy. Callers replace the maps they modify.
func (s *State) clone() *State {
	c := *s
	return &c
}

func (s *State) mutateDocuments(fn func(m map[string]domain.Document)) {
	m := make(map[string]domain.Document, len(s.documents)+1)
	for k, v := range s.documents {
		m[k] = v
	}
	fn(m)
	s.documents = m
	s.docRev = nextRev()
}

func (s *State) mutateEnhancements(fn func(m map[string]domain.Enhancement)) {
	m := make(map[string]domain.Enhancement, len(s.enhancements)+1)
	for k, v := range s.enhancements {
		m[k] = v
	}
	fn(m)
	s.enhancements = m
	s.enhRev = nextRev()
}

func (s *State) mutatePending(fn func(m map[string]domain.OptimisticUpdate)) {
	m := make(map[string]domain.OptimisticUpdate, len(s.pending)+1)
	for k, v := range s.pending {
		m[k] = v
	}
	fn(m)
	s.pending = m
	s.pendingRev = nextRev()
}

func (s *State) mutateSocket(fn func(sock *domain.SocketState)) {
	sock := s.socket.Clone()
	if sock.Subscriptions == nil {
		sock.Subscriptions = make(map[domain.Channel]int)
	}
	fn(&sock)
	s.socket = sock
	s.socketRev = nextRev()
}

// ConfirmedDocument returns the server-confirmed document, ignoring any
// pending overlay.
func (s *State) ConfirmedDocument(id string) (domain.Document, bool) {
	doc, ok := s.documents[id]
	if !ok {
		return domain.Document{}, false
	}
	return doc.Clone(), true
}

// ConfirmedCount returns the number of confirmed documents.
func (s *State) ConfirmedCount() int {
	return len(s.documents)
}

// PendingOperation returns a pending operation by ID.
func (s *State) PendingOperation(opID string) (domain.OptimisticUpdate, bool) {
	op, ok := s.pending[opID]
	return op, ok
}

// PendingCount returns the number of unsettled operations.
func (s *State) PendingCount() int {
	return len(s.pending)
}

// Stats returns the settlement counters.
func (s *State) Stats() Stats {
	return s.stats
}

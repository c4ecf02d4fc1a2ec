package store

import (
	"cmp"
	"slices"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// Selector memoises a pure function of State on a comparable key derived
// from the state. While the key is unchanged the previous result, and so
// the same backing array, is returned.
type Selector[K comparable, V any] struct {
	key     func(*State) K
	compute func(*State) V

	mu      sync.Mutex
	valid   bool
	lastKey K
	last    V
}

// NewSelector builds a memoised selector.
func NewSelector[K comparable, V any](key func(*State) K, compute func(*State) V) *Selector[K, V] {
	return &Selector[K, V]{key: key, compute: compute}
}

// Select returns the memoised result for st.
func (s *Selector[K, V]) Select(st *State) V {
	k := s.key(st)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid && s.lastKey == k {
		return s.last
	}
	s.last = s.compute(st)
	s.lastKey = k
	s.valid = true
	return s.last
}

type docKey struct {
	doc, pending uint64
}

func documentsKey(st *State) docKey {
	return docKey{doc: st.docRev, pending: st.pendingRev}
}

type selectors struct {
	documents *Selector[docKey, []domain.Document]
	pending   *Selector[uint64, []domain.OptimisticUpdate]
	channels  *Selector[uint64, []domain.Channel]

	mu       sync.Mutex
	statuses map[domain.DocumentStatus]*Selector[docKey, []domain.Document]
}

func newSelectors() *selectors {
	return &selectors{
		documents: NewSelector(documentsKey, VisibleDocuments),
		pending: NewSelector(func(st *State) uint64 { return st.pendingRev },
			PendingOperations),
		channels: NewSelector(func(st *State) uint64 { return st.socketRev },
			func(st *State) []domain.Channel { return st.socket.ActiveChannels() }),
		statuses: make(map[domain.DocumentStatus]*Selector[docKey, []domain.Document]),
	}
}

func (s *selectors) byStatus(status domain.DocumentStatus) *Selector[docKey, []domain.Document] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.statuses[status]
	if !ok {
		sel = NewSelector(documentsKey, func(st *State) []domain.Document {
			return DocumentsByStatus(st, status)
		})
		s.statuses[status] = sel
	}
	return sel
}

// PendingOperations returns unsettled operations sorted by operation ID.
// Operation IDs sort by creation time.
func PendingOperations(st *State) []domain.OptimisticUpdate {
	ops := make([]domain.OptimisticUpdate, 0, len(st.pending))
	for _, op := range st.pending {
		ops = append(ops, op)
	}
	slices.SortFunc(ops, func(a, b domain.OptimisticUpdate) int {
		return cmp.Compare(a.OperationID, b.OperationID)
	})
	return ops
}

// overlay returns the confirmed documents with pending operations applied.
func overlay(st *State) map[string]domain.Document {
	visible := make(map[string]domain.Document, len(st.documents)+len(st.pending))
	for id, doc := range st.documents {
		visible[id] = doc
	}
	for _, op := range PendingOperations(st) {
		switch op.Type {
		case domain.OperationCreate, domain.OperationUpdate:
			if op.Payload != nil {
				visible[op.EntityID] = *op.Payload
			}
		case domain.OperationDelete:
			delete(visible, op.EntityID)
		}
	}
	return visible
}

// VisibleDocuments returns the documents the UI should show, ordered by
// creation time then ID.
func VisibleDocuments(st *State) []domain.Document {
	visible := overlay(st)
	out := make([]domain.Document, 0, len(visible))
	for _, doc := range visible {
		out = append(out, doc.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Document) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// VisibleDocument returns one visible document.
func VisibleDocument(st *State, id string) (domain.Document, bool) {
	doc, ok := st.documents[id]
	for _, op := range PendingOperations(st) {
		if op.EntityID != id {
			continue
		}
		switch op.Type {
		case domain.OperationCreate, domain.OperationUpdate:
			if op.Payload != nil {
				doc, ok = *op.Payload, true
			}
		case domain.OperationDelete:
			doc, ok = domain.Document{}, false
		}
	}
	if !ok {
		return domain.Document{}, false
	}
	return doc.Clone(), true
}

// DocumentsByStatus filters the visible documents by status.
func DocumentsByStatus(st *State, status domain.DocumentStatus) []domain.Document {
	var out []domain.Document
	for _, doc := range VisibleDocuments(st) {
		if doc.Status == status {
			out = append(out, doc)
		}
	}
	return out
}

// Enhancement returns the enhancement attached to a document.
func Enhancement(st *State, documentID string) (domain.Enhancement, bool) {
	e, ok := st.enhancements[documentID]
	if !ok {
		return domain.Enhancement{}, false
	}
	return e.Clone(), true
}

// IsPending reports whether any unsettled operation targets documentID.
func IsPending(st *State, documentID string) bool {
	for _, op := range st.pending {
		if op.EntityID == documentID {
			return true
		}
	}
	return false
}

// Socket returns a copy of the socket state.
func Socket(st *State) domain.SocketState {
	return st.socket.Clone()
}

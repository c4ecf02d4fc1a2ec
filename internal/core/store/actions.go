package store

import (
	"strings"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// now is replaced in tests.
var now = time.Now

// --- Document actions ---

// AddDocument inserts or replaces a confirmed document.
func (s *Store) AddDocument(doc domain.Document) {
	s.dispatch(func(st *State) (*State, bool) {
		if doc.ID == "" {
			return st, false
		}
		next := st.clone()
		next.mutateDocuments(func(m map[string]domain.Document) {
			m[doc.ID] = doc.Clone()
		})
		return next, true
	})
}

// UpdateDocument applies a patch to a confirmed document.
// Unknown documents are ignored.
func (s *Store) UpdateDocument(id string, patch domain.DocumentPatch) {
	s.dispatch(func(st *State) (*State, bool) {
		doc, ok := st.documents[id]
		if !ok || patch.IsEmpty() {
			return st, false
		}
		updated := patch.Apply(doc)
		updated.UpdatedAt = now()
		next := st.clone()
		next.mutateDocuments(func(m map[string]domain.Document) {
			m[id] = updated
		})
		return next, true
	})
}

// DeleteDocument removes a confirmed document and its enhancement.
func (s *Store) DeleteDocument(id string) {
	s.dispatch(func(st *State) (*State, bool) {
		_, hasDoc := st.documents[id]
		_, hasEnh := st.enhancements[id]
		if !hasDoc && !hasEnh {
			return st, false
		}
		next := st.clone()
		if hasDoc {
			next.mutateDocuments(func(m map[string]domain.Document) {
				delete(m, id)
			})
		}
		if hasEnh {
			next.mutateEnhancements(func(m map[string]domain.Enhancement) {
				delete(m, id)
			})
		}
		return next, true
	})
}

// --- Enhancement actions ---

// UpdateProgress records enhancement progress for a document and moves the
// document to processing. Ignored for unknown documents and for
// enhancements already in a terminal state.
func (s *Store) UpdateProgress(documentID, enhancementID string, progress int, stage string) {
	s.dispatch(func(st *State) (*State, bool) {
		doc, ok := st.documents[documentID]
		if !ok {
			return st, false
		}
		enh := st.enhancements[documentID]
		if enh.Terminal() {
			return st, false
		}
		ts := now()
		enh = enhancementFor(enh, doc, enhancementID)
		enh.Progress = domain.ClampProgress(progress)
		if stage != "" {
			enh.Stage = stage
		}
		enh.Status = domain.EnhancementRunning
		enh.UpdatedAt = ts

		next := st.clone()
		next.mutateEnhancements(func(m map[string]domain.Enhancement) {
			m[documentID] = enh
		})
		next.mutateDocuments(func(m map[string]domain.Document) {
			m[documentID] = linkEnhancement(doc, enh, domain.StatusProcessing, ts)
		})
		return next, true
	})
}

// CompleteEnhancement marks the enhancement and its document completed.
func (s *Store) CompleteEnhancement(documentID, enhancementID string, result map[string]any) {
	s.finishEnhancement(documentID, enhancementID, func(e *domain.Enhancement) domain.DocumentStatus {
		e.Status = domain.EnhancementCompleted
		e.Progress = 100
		e.Result = result
		e.Error = ""
		return domain.StatusCompleted
	})
}

// FailEnhancement marks the enhancement and its document failed.
func (s *Store) FailEnhancement(documentID, enhancementID, reason string) {
	s.finishEnhancement(documentID, enhancementID, func(e *domain.Enhancement) domain.DocumentStatus {
		e.Status = domain.EnhancementFailed
		e.Error = reason
		return domain.StatusFailed
	})
}

func (s *Store) finishEnhancement(documentID, enhancementID string, apply func(*domain.Enhancement) domain.DocumentStatus) {
	s.dispatch(func(st *State) (*State, bool) {
		doc, ok := st.documents[documentID]
		if !ok {
			return st, false
		}
		ts := now()
		enh := enhancementFor(st.enhancements[documentID], doc, enhancementID)
		status := apply(&enh)
		enh.UpdatedAt = ts

		next := st.clone()
		next.mutateEnhancements(func(m map[string]domain.Enhancement) {
			m[documentID] = enh
		})
		next.mutateDocuments(func(m map[string]domain.Document) {
			m[documentID] = linkEnhancement(doc, enh, status, ts)
		})
		return next, true
	})
}

func enhancementFor(enh domain.Enhancement, doc domain.Document, enhancementID string) domain.Enhancement {
	enh = enh.Clone()
	enh.DocumentID = doc.ID
	switch {
	case enhancementID != "":
		enh.ID = enhancementID
	case enh.ID == "":
		enh.ID = doc.EnhancementID
	}
	if enh.Status == "" {
		enh.Status = domain.EnhancementPending
	}
	return enh
}

func linkEnhancement(doc domain.Document, enh domain.Enhancement, status domain.DocumentStatus, ts time.Time) domain.Document {
	doc = doc.Clone()
	doc.Status = status
	if enh.ID != "" {
		doc.EnhancementID = enh.ID
	}
	doc.UpdatedAt = ts
	return doc
}

// --- Optimistic update actions ---

// AddOptimisticUpdate registers a pending operation. Its payload becomes
// visible immediately through the selectors. Duplicate IDs are ignored.
func (s *Store) AddOptimisticUpdate(op domain.OptimisticUpdate) {
	s.dispatch(func(st *State) (*State, bool) {
		if op.OperationID == "" || op.EntityID == "" {
			return st, false
		}
		if _, exists := st.pending[op.OperationID]; exists {
			return st, false
		}
		if op.Payload != nil {
			p := op.Payload.Clone()
			op.Payload = &p
		}
		next := st.clone()
		next.mutatePending(func(m map[string]domain.OptimisticUpdate) {
			m[op.OperationID] = op
		})
		return next, true
	})
}

// RemoveOptimisticUpdate drops a pending operation without touching
// confirmed state.
func (s *Store) RemoveOptimisticUpdate(opID string) {
	s.dispatch(func(st *State) (*State, bool) {
		if _, ok := st.pending[opID]; !ok {
			return st, false
		}
		next := st.clone()
		next.mutatePending(func(m map[string]domain.OptimisticUpdate) {
			delete(m, opID)
		})
		next.stats.Removed++
		return next, true
	})
}

// RollbackOptimisticUpdate discards a failed operation. The visible state
// reverts to the confirmed state, which the operation never touched. For a
// create, any confirmed entity stored under the temporary ID is purged too.
func (s *Store) RollbackOptimisticUpdate(opID string) {
	s.dispatch(func(st *State) (*State, bool) {
		op, ok := st.pending[opID]
		if !ok {
			return st, false
		}
		next := st.clone()
		next.mutatePending(func(m map[string]domain.OptimisticUpdate) {
			delete(m, opID)
		})
		if op.Type == domain.OperationCreate {
			if _, exists := st.documents[op.EntityID]; exists {
				next.mutateDocuments(func(m map[string]domain.Document) {
					delete(m, op.EntityID)
				})
			}
		}
		next.stats.RolledBack++
		return next, true
	})
}

// CommitOptimisticUpdate settles a successful operation with the server's
// canonical document in one transition.
//
// For a create whose canonical ID differs from the temporary ID, every
// reference to the temporary ID is remapped: the enhancement entry, other
// pending operations targeting it and document channel subscriptions.
// For a delete, canonical is ignored.
func (s *Store) CommitOptimisticUpdate(opID string, canonical *domain.Document) bool {
	return s.dispatch(func(st *State) (*State, bool) {
		op, ok := st.pending[opID]
		if !ok {
			return st, false
		}
		next := st.clone()
		next.mutatePending(func(m map[string]domain.OptimisticUpdate) {
			delete(m, opID)
		})

		switch op.Type {
		case domain.OperationDelete:
			next.mutateDocuments(func(m map[string]domain.Document) {
				delete(m, op.EntityID)
			})
			if _, ok := st.enhancements[op.EntityID]; ok {
				next.mutateEnhancements(func(m map[string]domain.Enhancement) {
					delete(m, op.EntityID)
				})
			}

		case domain.OperationCreate, domain.OperationUpdate:
			doc := canonical
			if doc == nil {
				doc = op.Payload
			}
			if doc == nil || doc.ID == "" {
				break
			}
			confirmed := doc.Clone()
			next.mutateDocuments(func(m map[string]domain.Document) {
				if op.EntityID != confirmed.ID {
					delete(m, op.EntityID)
				}
				m[confirmed.ID] = confirmed
			})
			if op.Type == domain.OperationCreate && op.EntityID != confirmed.ID {
				remapIdentity(next, op.EntityID, confirmed.ID)
			}
		}
		next.stats.Committed++
		return next, true
	})
}

// remapIdentity rewrites references from a temporary ID to a canonical ID.
func remapIdentity(st *State, tempID, canonicalID string) {
	if enh, ok := st.enhancements[tempID]; ok {
		st.mutateEnhancements(func(m map[string]domain.Enhancement) {
			delete(m, tempID)
			enh.DocumentID = canonicalID
			if _, exists := m[canonicalID]; !exists {
				m[canonicalID] = enh
			}
		})
	}

	if IsPending(st, tempID) {
		st.mutatePending(func(m map[string]domain.OptimisticUpdate) {
			for id, op := range m {
				if op.EntityID != tempID {
					continue
				}
				op.EntityID = canonicalID
				if op.Payload != nil {
					p := op.Payload.Clone()
					p.ID = canonicalID
					op.Payload = &p
				}
				if op.Snapshot != nil {
					snap := op.Snapshot.Clone()
					snap.ID = canonicalID
					op.Snapshot = &snap
				}
				m[id] = op
			}
		})
	}

	oldCh := domain.DocumentChannel(tempID)
	if n := st.socket.Subscriptions[oldCh]; n > 0 {
		st.mutateSocket(func(sock *domain.SocketState) {
			delete(sock.Subscriptions, oldCh)
			sock.Subscriptions[domain.DocumentChannel(canonicalID)] += n
		})
	}
}

// --- Subscription actions ---

// AddSubscription takes a reference on a channel. It reports true when
// this is the first holder, meaning the transport must subscribe.
func (s *Store) AddSubscription(ch domain.Channel) (first bool) {
	s.dispatch(func(st *State) (*State, bool) {
		if strings.TrimSpace(string(ch)) == "" {
			return st, false
		}
		next := st.clone()
		next.mutateSocket(func(sock *domain.SocketState) {
			sock.Subscriptions[ch]++
			first = sock.Subscriptions[ch] == 1
		})
		return next, true
	})
	return first
}

// RemoveSubscription releases a reference on a channel. It reports true
// when the last holder released it, meaning the transport must
// unsubscribe. Releasing an unheld channel is a no-op.
func (s *Store) RemoveSubscription(ch domain.Channel) (last bool) {
	s.dispatch(func(st *State) (*State, bool) {
		if st.socket.Subscriptions[ch] <= 0 {
			return st, false
		}
		next := st.clone()
		next.mutateSocket(func(sock *domain.SocketState) {
			sock.Subscriptions[ch]--
			if sock.Subscriptions[ch] <= 0 {
				delete(sock.Subscriptions, ch)
				last = true
			}
		})
		return next, true
	})
	return last
}

// --- Socket actions ---

// SetConnecting marks a dial in progress.
func (s *Store) SetConnecting() {
	s.setSocket(func(sock *domain.SocketState) bool {
		if sock.Phase == domain.PhaseConnecting {
			return false
		}
		sock.Phase = domain.PhaseConnecting
		return true
	})
}

// SetConnected marks the channel open and resets the reconnection counter.
func (s *Store) SetConnected() {
	s.setSocket(func(sock *domain.SocketState) bool {
		sock.Phase = domain.PhaseConnected
		sock.Connected = true
		sock.Reconnecting = false
		sock.ReconnectAttempts = 0
		sock.LastError = ""
		return true
	})
}

// SetDisconnected marks the channel closed. reason may be empty.
func (s *Store) SetDisconnected(reason string) {
	s.setSocket(func(sock *domain.SocketState) bool {
		sock.Phase = domain.PhaseDisconnected
		sock.Connected = false
		sock.Reconnecting = false
		if reason != "" {
			sock.LastError = reason
		}
		return true
	})
}

// SetReconnecting records one more reconnection attempt. The counter only
// grows until SetConnected resets it.
func (s *Store) SetReconnecting() {
	s.setSocket(func(sock *domain.SocketState) bool {
		sock.Phase = domain.PhaseReconnecting
		sock.Connected = false
		sock.Reconnecting = true
		sock.ReconnectAttempts++
		return true
	})
}

// SetConnectError records a failed dial without changing the phase.
func (s *Store) SetConnectError(reason string) {
	s.setSocket(func(sock *domain.SocketState) bool {
		sock.Connected = false
		sock.LastError = reason
		return true
	})
}

func (s *Store) setSocket(fn func(sock *domain.SocketState) bool) {
	s.dispatch(func(st *State) (*State, bool) {
		next := st.clone()
		changed := false
		next.mutateSocket(func(sock *domain.SocketState) {
			changed = fn(sock)
		})
		if !changed {
			return st, false
		}
		return next, true
	})
}

package services

import (
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/store"
	"github.com/custodia-labs/docsync/internal/logger"
)

var eventLog = logger.For("events")

// documentUpdate is the body of document:updated: the id plus the changed
// fields.
type documentUpdate struct {
	ID string `json:"id"`
	domain.DocumentPatch
}

// EventApplier turns server push events into store actions. Push events
// are authoritative and land in confirmed state; pending optimistic
// operations keep winning in the visible state until they settle.
type EventApplier struct {
	store    *store.Store
	handlers map[string]func(json.RawMessage) error
}

// NewEventApplier creates an applier writing to st.
func NewEventApplier(st *store.Store) *EventApplier {
	a := &EventApplier{store: st}
	a.handlers = map[string]func(json.RawMessage) error{
		domain.EventDocumentCreated:      a.documentCreated,
		domain.EventDocumentUpdated:      a.documentUpdated,
		domain.EventDocumentDeleted:      a.documentDeleted,
		domain.EventEnhancementProgress:  a.enhancementProgress,
		domain.EventEnhancementCompleted: a.enhancementCompleted,
		domain.EventEnhancementFailed:    a.enhancementFailed,
	}
	return a
}

// Apply applies one push event. Unknown events and undecodable payloads
// are logged and dropped; the returned error says why.
func (a *EventApplier) Apply(ev domain.PushEvent) error {
	handler, ok := a.handlers[ev.Name]
	if !ok {
		eventLog.Debug("ignoring unknown event %q", ev.Name)
		return fmt.Errorf("%w: event %q", domain.ErrUnsupportedType, ev.Name)
	}
	if err := handler(ev.Payload); err != nil {
		eventLog.Warn("dropping %s: %v", ev.Name, err)
		return err
	}
	eventLog.Debug("applied %s", ev.Name)
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func (a *EventApplier) documentCreated(raw json.RawMessage) error {
	var doc domain.Document
	if err := decode(raw, &doc); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document without id", domain.ErrInvalidInput)
	}
	if doc.Status == "" {
		doc.Status = domain.StatusUploaded
	}
	if !doc.Status.Valid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, doc.Status)
	}
	a.store.AddDocument(doc)
	return nil
}

func (a *EventApplier) documentUpdated(raw json.RawMessage) error {
	var upd documentUpdate
	if err := decode(raw, &upd); err != nil {
		return err
	}
	if upd.ID == "" {
		return fmt.Errorf("%w: update without id", domain.ErrInvalidInput)
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, *upd.Status)
	}
	a.store.UpdateDocument(upd.ID, upd.DocumentPatch)
	return nil
}

func (a *EventApplier) documentDeleted(raw json.RawMessage) error {
	var p domain.DocumentDeletedPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("%w: delete without id", domain.ErrInvalidInput)
	}
	a.store.DeleteDocument(p.ID)
	return nil
}

func (a *EventApplier) enhancementProgress(raw json.RawMessage) error {
	var p domain.ProgressPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if p.DocumentID == "" {
		return fmt.Errorf("%w: progress without documentId", domain.ErrInvalidInput)
	}
	a.store.UpdateProgress(p.DocumentID, p.EnhancementID, p.Progress, p.Stage)
	return nil
}

func (a *EventApplier) enhancementCompleted(raw json.RawMessage) error {
	var p domain.CompletedPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if p.DocumentID == "" {
		return fmt.Errorf("%w: completion without documentId", domain.ErrInvalidInput)
	}
	a.store.CompleteEnhancement(p.DocumentID, p.EnhancementID, p.Result)
	return nil
}

func (a *EventApplier) enhancementFailed(raw json.RawMessage) error {
	var p domain.FailedPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if p.DocumentID == "" {
		return fmt.Errorf("%w: failure without documentId", domain.ErrInvalidInput)
	}
	a.store.FailEnhancement(p.DocumentID, p.EnhancementID, p.Error)
	return nil
}

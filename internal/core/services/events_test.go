package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/store"
)

func push(name, payload string) domain.PushEvent {
	return domain.PushEvent{Name: name, Payload: json.RawMessage(payload)}
}

func TestApply_DocumentLifecycle(t *testing.T) {
	st := store.New()
	a := NewEventApplier(st)

	require.NoError(t, a.Apply(push(domain.EventDocumentCreated, `{"id":"d1","ownerId":"u1","name":"report.pdf"}`)))
	doc, ok := st.Document("d1")
	require.True(t, ok)
	assert.Equal(t, "report.pdf", doc.Name)
	assert.Equal(t, domain.StatusUploaded, doc.Status)

	require.NoError(t, a.Apply(push(domain.EventDocumentUpdated, `{"id":"d1","name":"final.pdf"}`)))
	doc, _ = st.Document("d1")
	assert.Equal(t, "final.pdf", doc.Name)
	assert.Equal(t, "u1", doc.OwnerID)

	require.NoError(t, a.Apply(push(domain.EventDocumentDeleted, `{"id":"d1"}`)))
	_, ok = st.Document("d1")
	assert.False(t, ok)
}

func TestApply_EnhancementLifecycle(t *testing.T) {
	st := store.New()
	a := NewEventApplier(st)
	require.NoError(t, a.Apply(push(domain.EventDocumentCreated, `{"id":"d1","name":"a"}`)))

	require.NoError(t, a.Apply(push(domain.EventEnhancementProgress,
		`{"documentId":"d1","enhancementId":"e1","progress":40,"stage":"ocr"}`)))
	enh, ok := st.Enhancement("d1")
	require.True(t, ok)
	assert.Equal(t, 40, enh.Progress)
	assert.Equal(t, "ocr", enh.Stage)
	doc, _ := st.Document("d1")
	assert.Equal(t, domain.StatusProcessing, doc.Status)

	require.NoError(t, a.Apply(push(domain.EventEnhancementCompleted,
		`{"documentId":"d1","enhancementId":"e1","result":{"pages":3}}`)))
	enh, _ = st.Enhancement("d1")
	assert.Equal(t, domain.EnhancementCompleted, enh.Status)
	assert.Equal(t, 100, enh.Progress)
	assert.InDelta(t, 3, enh.Result["pages"], 0)
	doc, _ = st.Document("d1")
	assert.Equal(t, domain.StatusCompleted, doc.Status)
}

func TestApply_EnhancementFailed(t *testing.T) {
	st := store.New()
	a := NewEventApplier(st)
	require.NoError(t, a.Apply(push(domain.EventDocumentCreated, `{"id":"d1","name":"a"}`)))

	require.NoError(t, a.Apply(push(domain.EventEnhancementFailed,
		`{"documentId":"d1","enhancementId":"e1","error":"corrupt file"}`)))

	enh, _ := st.Enhancement("d1")
	assert.Equal(t, domain.EnhancementFailed, enh.Status)
	assert.Equal(t, "corrupt file", enh.Error)
	doc, _ := st.Document("d1")
	assert.Equal(t, domain.StatusFailed, doc.Status)
}

func TestApply_UnknownEventDropped(t *testing.T) {
	st := store.New()
	a := NewEventApplier(st)
	before := st.State()

	err := a.Apply(push("user:renamed", `{}`))

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Same(t, before, st.State())
}

func TestApply_InvalidPayloadsDropped(t *testing.T) {
	tests := []struct {
		name  string
		event domain.PushEvent
	}{
		{"malformed json", push(domain.EventDocumentCreated, `{"id":`)},
		{"created without id", push(domain.EventDocumentCreated, `{"name":"a"}`)},
		{"created with bad status", push(domain.EventDocumentCreated, `{"id":"d1","status":"lost"}`)},
		{"updated without id", push(domain.EventDocumentUpdated, `{"name":"a"}`)},
		{"updated with bad status", push(domain.EventDocumentUpdated, `{"id":"d1","status":"lost"}`)},
		{"deleted without id", push(domain.EventDocumentDeleted, `{}`)},
		{"progress without document", push(domain.EventEnhancementProgress, `{"progress":5}`)},
		{"completed wrong type", push(domain.EventEnhancementCompleted, `[]`)},
		{"failed without document", push(domain.EventEnhancementFailed, `{"error":"x"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.New()
			a := NewEventApplier(st)
			before := st.State()

			err := a.Apply(tt.event)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Same(t, before, st.State())
		})
	}
}

func TestApply_PushDuringPendingUpdate(t *testing.T) {
	st := store.New()
	a := NewEventApplier(st)
	require.NoError(t, a.Apply(push(domain.EventDocumentCreated, `{"id":"d1","name":"server"}`)))

	local := domain.Document{ID: "d1", Name: "local", Status: domain.StatusUploaded}
	st.AddOptimisticUpdate(domain.OptimisticUpdate{
		OperationID: "op1", Type: domain.OperationUpdate, EntityID: "d1", Payload: &local,
	})

	require.NoError(t, a.Apply(push(domain.EventDocumentUpdated, `{"id":"d1","name":"server-2"}`)))

	doc, _ := st.Document("d1")
	assert.Equal(t, "local", doc.Name, "pending overlay wins until settled")

	st.RollbackOptimisticUpdate("op1")
	doc, _ = st.Document("d1")
	assert.Equal(t, "server-2", doc.Name)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDocument_Fields tests Document structure fields
func TestDocument_Fields(t *testing.T) {
	now := time.Now()

	doc := Document{
		ID:            "doc-123",
		OwnerID:       "user-1",
		Name:          "Quarterly Report",
		Status:        StatusUploaded,
		EnhancementID: "enh-9",
		Metadata:      map[string]any{"pages": 42},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	assert.Equal(t, "doc-123", doc.ID)
	assert.Equal(t, "user-1", doc.OwnerID)
	assert.Equal(t, "Quarterly Report", doc.Name)
	assert.Equal(t, StatusUploaded, doc.Status)
	assert.Equal(t, "enh-9", doc.EnhancementID)
	assert.Equal(t, 42, doc.Metadata["pages"])
}

func TestDocumentStatus_Valid(t *testing.T) {
	for _, s := range []DocumentStatus{StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, DocumentStatus("archived").Valid())
	assert.False(t, DocumentStatus("").Valid())
}

// TestDocument_Clone tests that clones do not share metadata
func TestDocument_Clone(t *testing.T) {
	doc := Document{ID: "doc-1", Metadata: map[string]any{"k": "v"}}

	clone := doc.Clone()
	clone.Metadata["k"] = "changed"

	assert.Equal(t, "v", doc.Metadata["k"])
}

func TestDocumentPatch_Apply(t *testing.T) {
	doc := Document{
		ID:       "doc-1",
		Name:     "A",
		Status:   StatusUploaded,
		Metadata: map[string]any{"keep": 1},
	}

	patch := DocumentPatch{
		Name:     StringPtr("B"),
		Status:   StatusPtr(StatusProcessing),
		Metadata: map[string]any{"added": true},
	}
	out := patch.Apply(doc)

	assert.Equal(t, "B", out.Name)
	assert.Equal(t, StatusProcessing, out.Status)
	assert.Equal(t, 1, out.Metadata["keep"])
	assert.Equal(t, true, out.Metadata["added"])

	// Original is untouched
	assert.Equal(t, "A", doc.Name)
	_, found := doc.Metadata["added"]
	assert.False(t, found)
}

func TestDocumentPatch_ApplyToNilMetadata(t *testing.T) {
	out := DocumentPatch{Metadata: map[string]any{"x": 1}}.Apply(Document{ID: "doc-1"})
	require.NotNil(t, out.Metadata)
	assert.Equal(t, 1, out.Metadata["x"])
}

func TestDocumentPatch_IsEmpty(t *testing.T) {
	assert.True(t, DocumentPatch{}.IsEmpty())
	assert.False(t, DocumentPatch{Name: StringPtr("x")}.IsEmpty())
	assert.False(t, DocumentPatch{Metadata: map[string]any{"a": 1}}.IsEmpty())
}

func TestEnhancement_Terminal(t *testing.T) {
	assert.False(t, Enhancement{Status: EnhancementPending}.Terminal())
	assert.False(t, Enhancement{Status: EnhancementRunning}.Terminal())
	assert.True(t, Enhancement{Status: EnhancementCompleted}.Terminal())
	assert.True(t, Enhancement{Status: EnhancementFailed}.Terminal())
}

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 0, ClampProgress(-5))
	assert.Equal(t, 50, ClampProgress(50))
	assert.Equal(t, 100, ClampProgress(250))
}

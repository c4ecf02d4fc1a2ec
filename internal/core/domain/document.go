package domain

import (
	"maps"
	"time"
)

// DocumentStatus is the lifecycle status of a document.
type DocumentStatus string

const (
	// StatusUploaded is set when the document has been received.
	StatusUploaded DocumentStatus = "uploaded"

	// StatusProcessing is set while an enhancement is running.
	StatusProcessing DocumentStatus = "processing"

	// StatusCompleted is set once the enhancement finished successfully.
	StatusCompleted DocumentStatus = "completed"

	// StatusFailed is set when the enhancement failed.
	StatusFailed DocumentStatus = "failed"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document represents a document as seen by the dashboard.
type Document struct {
	// ID is the unique identifier for the document.
	// Optimistically created documents carry a temporary ID until
	// the server confirms them.
	ID string `json:"id"`

	// OwnerID is the user that owns the document.
	OwnerID string `json:"ownerId"`

	// Name is the human-readable name.
	Name string `json:"name"`

	// Status is the lifecycle status.
	Status DocumentStatus `json:"status"`

	// EnhancementID references the enhancement attached to this document.
	EnhancementID string `json:"enhancementId,omitempty"`

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the document was last changed.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy of the document that shares no mutable state.
func (d Document) Clone() Document {
	if d.Metadata != nil {
		d.Metadata = maps.Clone(d.Metadata)
	}
	return d
}

// DocumentPatch is a partial update. Nil fields are left unchanged.
type DocumentPatch struct {
	Name          *string         `json:"name,omitempty"`
	Status        *DocumentStatus `json:"status,omitempty"`
	EnhancementID *string         `json:"enhancementId,omitempty"`

	// Metadata keys are merged into the existing metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Apply returns a copy of doc with the patch applied.
func (p DocumentPatch) Apply(doc Document) Document {
	out := doc.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.EnhancementID != nil {
		out.EnhancementID = *p.EnhancementID
	}
	if len(p.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]any, len(p.Metadata))
		}
		maps.Copy(out.Metadata, p.Metadata)
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p DocumentPatch) IsEmpty() bool {
	return p.Name == nil && p.Status == nil && p.EnhancementID == nil && len(p.Metadata) == 0
}

// StringPtr returns a pointer to s. Handy for building patches.
func StringPtr(s string) *string {
	return &s
}

// StatusPtr returns a pointer to s.
func StatusPtr(s DocumentStatus) *DocumentStatus {
	return &s
}

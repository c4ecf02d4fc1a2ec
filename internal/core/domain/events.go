package domain

import "encoding/json"

// Push event names sent by the server.
const (
	EventDocumentCreated      = "document:created"
	EventDocumentUpdated      = "document:updated"
	EventDocumentDeleted      = "document:deleted"
	EventEnhancementProgress  = "enhancement:progress"
	EventEnhancementCompleted = "enhancement:completed"
	EventEnhancementFailed    = "enhancement:failed"
)

// PushEvent is a server-originated state change.
type PushEvent struct {
	Name    string
	Payload json.RawMessage
}

// DocumentDeletedPayload is the body of document:deleted.
type DocumentDeletedPayload struct {
	ID string `json:"id"`
}

// ProgressPayload is the body of enhancement:progress.
type ProgressPayload struct {
	DocumentID    string `json:"documentId"`
	EnhancementID string `json:"enhancementId,omitempty"`
	Progress      int    `json:"progress"`
	Stage         string `json:"stage,omitempty"`
}

// CompletedPayload is the body of enhancement:completed.
type CompletedPayload struct {
	DocumentID    string         `json:"documentId"`
	EnhancementID string         `json:"enhancementId,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
}

// FailedPayload is the body of enhancement:failed.
type FailedPayload struct {
	DocumentID    string `json:"documentId"`
	EnhancementID string `json:"enhancementId,omitempty"`
	Error         string `json:"error"`
}

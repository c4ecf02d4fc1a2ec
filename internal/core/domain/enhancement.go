package domain

import (
	"maps"
	"time"
)

// EnhancementStatus is the state of an enhancement run.
type EnhancementStatus string

const (
	EnhancementPending   EnhancementStatus = "pending"
	EnhancementRunning   EnhancementStatus = "running"
	EnhancementCompleted EnhancementStatus = "completed"
	EnhancementFailed    EnhancementStatus = "failed"
)

// Enhancement holds progress and result data for a document.
// There is at most one enhancement per document.
type Enhancement struct {
	// ID is the enhancement identifier assigned by the server.
	ID string `json:"id"`

	// DocumentID links the enhancement to its document.
	DocumentID string `json:"documentId"`

	// Progress is a percentage in the range [0, 100].
	Progress int `json:"progress"`

	// Stage is a free-form label for the current processing stage.
	Stage string `json:"stage,omitempty"`

	// Status is the run state.
	Status EnhancementStatus `json:"status"`

	// Result holds the output once completed.
	Result map[string]any `json:"result,omitempty"`

	// Error holds the failure message once failed.
	Error string `json:"error,omitempty"`

	// UpdatedAt is when the enhancement last changed.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the enhancement reached a final state.
// Terminal enhancements ignore further progress updates.
func (e Enhancement) Terminal() bool {
	return e.Status == EnhancementCompleted || e.Status == EnhancementFailed
}

// Clone returns a copy that shares no mutable state.
func (e Enhancement) Clone() Enhancement {
	if e.Result != nil {
		e.Result = maps.Clone(e.Result)
	}
	return e
}

// ClampProgress bounds p to [0, 100].
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

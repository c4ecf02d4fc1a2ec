package domain

import "time"

// OperationType is the kind of speculative mutation.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// OptimisticUpdate is a mutation applied locally before the server
// confirms it. It exists only between initiation and settlement.
type OptimisticUpdate struct {
	// OperationID identifies the pending operation. IDs sort by creation time.
	OperationID string

	// Type is the kind of mutation.
	Type OperationType

	// EntityID is the document the operation targets. For creates this is
	// the temporary ID.
	EntityID string

	// Timestamp is when the operation was initiated.
	Timestamp time.Time

	// Payload is the speculative document. Nil for deletes.
	Payload *Document

	// Snapshot is the confirmed document before the operation, if any.
	// It is informational, e.g. for showing a conflict. Rollback does not
	// read it: confirmed state is never touched while an operation is
	// pending, so dropping the operation restores the previous view.
	Snapshot *Document
}

// Settlement is the outcome of a pending operation.
type Settlement string

const (
	SettlementCommitted  Settlement = "committed"
	SettlementRolledBack Settlement = "rolled_back"
)

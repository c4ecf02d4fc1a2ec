package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/store"
	"github.com/custodia-labs/docsync/internal/logger"
)

var optimisticLog = logger.For("optimistic")

// TempIDPrefix marks client-generated document IDs awaiting a canonical ID.
const TempIDPrefix = "tmp-"

// Operation is one mutation for Batch. Build it with CreateOp, UpdateOp
// or DeleteOp.
type Operation struct {
	Type   domain.OperationType
	ID     string
	Draft  domain.Document
	Patch  domain.DocumentPatch
	Save   driven.SaveFunc
	Delete driven.DeleteFunc
}

// CreateOp describes a create.
func CreateOp(draft domain.Document, save driven.SaveFunc) Operation {
	return Operation{Type: domain.OperationCreate, Draft: draft, Save: save}
}

// UpdateOp describes an update.
func UpdateOp(id string, patch domain.DocumentPatch, save driven.SaveFunc) Operation {
	return Operation{Type: domain.OperationUpdate, ID: id, Patch: patch, Save: save}
}

// DeleteOp describes a delete.
func DeleteOp(id string, del driven.DeleteFunc) Operation {
	return Operation{Type: domain.OperationDelete, ID: id, Delete: del}
}

// Result is the settlement of one optimistic operation.
type Result struct {
	Success     bool
	OperationID string

	// Document is the canonical document after a committed create or
	// update.
	Document *domain.Document

	Err error
}

// BatchResult aggregates a batch. Results are in submission order.
type BatchResult struct {
	Successful int
	Failed     int
	Results    []Result
}

// OptimisticManager applies document mutations locally, runs the server
// action, then commits or rolls back. Operations never touch confirmed
// state until they settle.
type OptimisticManager struct {
	store    *store.Store
	registry *SubscriptionRegistry
	metrics  driven.MetricsRecorder

	// BatchLimit caps concurrent operations in Batch. Zero means no limit.
	BatchLimit int
}

// NewOptimisticManager creates a manager. registry and metrics may be nil;
// with a registry, subscriptions follow a created document to its
// canonical ID.
func NewOptimisticManager(st *store.Store, registry *SubscriptionRegistry, metrics driven.MetricsRecorder) *OptimisticManager {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &OptimisticManager{store: st, registry: registry, metrics: metrics}
}

// Create shows draft under a temporary ID at once, then saves it. On
// success every reference to the temporary ID moves to the canonical ID.
func (m *OptimisticManager) Create(ctx context.Context, draft domain.Document, save driven.SaveFunc) Result {
	if save == nil {
		return Result{Err: fmt.Errorf("%w: nil save action", domain.ErrInvalidInput)}
	}

	ts := time.Now()
	doc := draft.Clone()
	doc.ID = TempIDPrefix + uuid.NewString()
	if doc.Status == "" {
		doc.Status = domain.StatusUploaded
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = ts
	}
	doc.UpdatedAt = ts

	opID := m.begin(domain.OptimisticUpdate{
		Type:      domain.OperationCreate,
		EntityID:  doc.ID,
		Timestamp: ts,
		Payload:   &doc,
	})

	canonical, err := callSave(ctx, save, doc)
	if err == nil && canonical.ID == "" {
		err = fmt.Errorf("%w: canonical document has no id", domain.ErrServerAction)
	}
	if err != nil {
		return m.rollback(domain.OperationCreate, opID, err)
	}

	res := m.commit(domain.OperationCreate, opID, &canonical)
	if m.registry != nil && canonical.ID != doc.ID {
		if err := m.registry.Remap(ctx, doc.ID, canonical.ID); err != nil {
			optimisticLog.Warn("moving subscription %s -> %s: %v", doc.ID, canonical.ID, err)
		}
	}
	return res
}

// Update applies patch to the visible document at once, then saves the
// result. On failure the visible document reverts.
func (m *OptimisticManager) Update(ctx context.Context, id string, patch domain.DocumentPatch, save driven.SaveFunc) Result {
	if save == nil {
		return Result{Err: fmt.Errorf("%w: nil save action", domain.ErrInvalidInput)}
	}
	current, ok := m.store.Document(id)
	if !ok {
		return Result{Err: fmt.Errorf("update %s: %w", id, domain.ErrNotFound)}
	}

	ts := time.Now()
	next := patch.Apply(current)
	next.UpdatedAt = ts

	opID := m.begin(domain.OptimisticUpdate{
		Type:      domain.OperationUpdate,
		EntityID:  id,
		Timestamp: ts,
		Payload:   &next,
		Snapshot:  m.snapshot(id),
	})

	canonical, err := callSave(ctx, save, next)
	if err != nil {
		return m.rollback(domain.OperationUpdate, opID, err)
	}
	if canonical.ID == "" {
		canonical.ID = id
	}
	return m.commit(domain.OperationUpdate, opID, &canonical)
}

// Delete hides the document at once, then deletes it on the server. On
// failure the document reappears.
func (m *OptimisticManager) Delete(ctx context.Context, id string, del driven.DeleteFunc) Result {
	if del == nil {
		return Result{Err: fmt.Errorf("%w: nil delete action", domain.ErrInvalidInput)}
	}
	if _, ok := m.store.Document(id); !ok {
		return Result{Err: fmt.Errorf("delete %s: %w", id, domain.ErrNotFound)}
	}

	opID := m.begin(domain.OptimisticUpdate{
		Type:      domain.OperationDelete,
		EntityID:  id,
		Timestamp: time.Now(),
		Snapshot:  m.snapshot(id),
	})

	if err := callDelete(ctx, del, id); err != nil {
		return m.rollback(domain.OperationDelete, opID, err)
	}
	return m.commit(domain.OperationDelete, opID, nil)
}

// Batch runs operations concurrently and waits for all of them to settle.
// One failure does not cancel the others.
func (m *OptimisticManager) Batch(ctx context.Context, ops []Operation) BatchResult {
	results := make([]Result, len(ops))

	var g errgroup.Group
	if m.BatchLimit > 0 {
		g.SetLimit(m.BatchLimit)
	}
	for i, op := range ops {
		g.Go(func() error {
			results[i] = m.execute(ctx, op)
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{Results: results}
	for _, r := range results {
		if r.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	optimisticLog.Debug("batch settled: %d ok, %d failed", out.Successful, out.Failed)
	return out
}

func (m *OptimisticManager) execute(ctx context.Context, op Operation) Result {
	switch op.Type {
	case domain.OperationCreate:
		return m.Create(ctx, op.Draft, op.Save)
	case domain.OperationUpdate:
		return m.Update(ctx, op.ID, op.Patch, op.Save)
	case domain.OperationDelete:
		return m.Delete(ctx, op.ID, op.Delete)
	default:
		return Result{Err: fmt.Errorf("%w: operation %q", domain.ErrUnsupportedType, op.Type)}
	}
}

// begin registers the pending operation under a fresh time-ordered ID.
func (m *OptimisticManager) begin(op domain.OptimisticUpdate) string {
	op.OperationID = ulid.Make().String()
	m.store.AddOptimisticUpdate(op)
	m.metrics.PendingOperations(m.store.State().PendingCount())
	optimisticLog.Debug("%s %s pending as %s", op.Type, op.EntityID, op.OperationID)
	return op.OperationID
}

func (m *OptimisticManager) snapshot(id string) *domain.Document {
	doc, ok := m.store.State().ConfirmedDocument(id)
	if !ok {
		return nil
	}
	return &doc
}

func (m *OptimisticManager) commit(opType domain.OperationType, opID string, canonical *domain.Document) Result {
	m.store.CommitOptimisticUpdate(opID, canonical)
	m.metrics.OptimisticSettled(opType, domain.SettlementCommitted)
	m.metrics.PendingOperations(m.store.State().PendingCount())
	optimisticLog.Debug("%s %s committed", opType, opID)

	res := Result{Success: true, OperationID: opID}
	if canonical != nil {
		doc := canonical.Clone()
		res.Document = &doc
	}
	return res
}

func (m *OptimisticManager) rollback(opType domain.OperationType, opID string, err error) Result {
	m.store.RollbackOptimisticUpdate(opID)
	m.metrics.OptimisticSettled(opType, domain.SettlementRolledBack)
	m.metrics.PendingOperations(m.store.State().PendingCount())
	optimisticLog.Warn("%s %s rolled back: %v", opType, opID, err)
	return Result{OperationID: opID, Err: err}
}

func callSave(ctx context.Context, save driven.SaveFunc, doc domain.Document) (out domain.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrServerAction, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	return save(ctx, doc)
}

func callDelete(ctx context.Context, del driven.DeleteFunc, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrServerAction, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return del(ctx, id)
}

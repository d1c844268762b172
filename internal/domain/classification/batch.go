package classification

import (
	"time"

	"github.com/google/uuid"
)

// StatusCounts holds per-status item totals for one batch, as read from the
// datastore at a single point in time.
type StatusCounts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Total returns how many item rows exist for the batch.
func (c StatusCounts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed + c.Cancelled
}

// Terminal returns how many items reached a terminal state.
func (c StatusCounts) Terminal() int {
	return c.Completed + c.Failed + c.Cancelled
}

// Batch is a named collection of work items created together. Its counters
// and status are derived: the progress aggregator recomputes them from item
// statuses and overwrites them unconditionally, which is what makes
// concurrent, duplicate, or out-of-order recomputations converge.
type Batch struct {
	id       uuid.UUID
	name     string
	promptID *uuid.UUID

	// totalCount is the intended item count, fixed at creation. It is the
	// denominator for completion even when item insertion lagged behind or
	// failed partway.
	totalCount int

	completedCount int
	failedCount    int
	status         BatchStatus

	incompleteReportedAt *time.Time
	createdAt            time.Time
	updatedAt            time.Time
}

// NewBatch creates a pending batch with its immutable intended item count.
func NewBatch(id uuid.UUID, name string, promptID *uuid.UUID, totalCount int) *Batch {
	now := time.Now().UTC()
	return &Batch{
		id:         id,
		name:       name,
		promptID:   promptID,
		totalCount: totalCount,
		status:     BatchStatusPending,
		createdAt:  now,
		updatedAt:  now,
	}
}

// ReconstructBatch creates a Batch from stored fields, bypassing creation
// invariants. This should only be used by repositories when loading from the DB.
func ReconstructBatch(
	id uuid.UUID,
	name string,
	promptID *uuid.UUID,
	totalCount, completedCount, failedCount int,
	status BatchStatus,
	incompleteReportedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Batch {
	return &Batch{
		id:                   id,
		name:                 name,
		promptID:             promptID,
		totalCount:           totalCount,
		completedCount:       completedCount,
		failedCount:          failedCount,
		status:               status,
		incompleteReportedAt: incompleteReportedAt,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

// ID returns the unique identifier for this batch.
func (b *Batch) ID() uuid.UUID { return b.id }

// Name returns the display name of the batch.
func (b *Batch) Name() string { return b.name }

// PromptID returns the optional per-batch classification prompt reference.
func (b *Batch) PromptID() *uuid.UUID { return b.promptID }

// TotalCount returns the intended item count fixed at creation.
func (b *Batch) TotalCount() int { return b.totalCount }

// CompletedCount returns the last recomputed completed-item count.
func (b *Batch) CompletedCount() int { return b.completedCount }

// FailedCount returns the last recomputed failed-item count.
func (b *Batch) FailedCount() int { return b.failedCount }

// Status returns the current aggregate status.
func (b *Batch) Status() BatchStatus { return b.status }

// IncompleteReportedAt returns when the one-time incomplete-batch diagnostic
// was emitted, if ever.
func (b *Batch) IncompleteReportedAt() *time.Time { return b.incompleteReportedAt }

func (b *Batch) CreatedAt() time.Time { return b.createdAt }
func (b *Batch) UpdatedAt() time.Time { return b.updatedAt }

// Cancel marks the batch cancelled. Cancellation is absorbing; cancelling an
// already-cancelled or completed batch is rejected by the state machine.
func (b *Batch) Cancel() error {
	if err := b.status.validateTransition(BatchStatusCancelled); err != nil {
		return err
	}
	b.status = BatchStatusCancelled
	b.updatedAt = time.Now().UTC()
	return nil
}

// ApplyProgress recomputes the derived counters and status from a snapshot of
// item status counts. It is pure with respect to its inputs and idempotent:
// applying the same counts twice yields the same counters and status.
//
// The rules are evaluated in order:
//  1. cancelled is absorbing
//  2. all intended items terminal -> completed
//  3. fewer item rows than intended -> status unchanged, report incomplete
//  4. otherwise -> processing
//
// The returned flag is true when rule 3 fired, meaning the caller should emit
// the one-time incomplete-batch diagnostic.
func (b *Batch) ApplyProgress(counts StatusCounts) bool {
	b.completedCount = counts.Completed
	b.failedCount = counts.Failed
	b.updatedAt = time.Now().UTC()

	if b.status == BatchStatusCancelled {
		return false
	}

	switch {
	case counts.Terminal() == b.totalCount:
		b.setStatus(BatchStatusCompleted)
	case counts.Total() < b.totalCount:
		// Item insertion never reached totalCount; leave the status alone so
		// the discrepancy stays visible instead of flapping to completed.
		return true
	default:
		b.setStatus(BatchStatusProcessing)
	}
	return false
}

// setStatus assigns the target status when it differs and the transition is
// legal. Recomputing an unchanged status is a no-op rather than an error.
func (b *Batch) setStatus(target BatchStatus) {
	if b.status == target {
		return
	}
	if err := b.status.validateTransition(target); err != nil {
		return
	}
	b.status = target
}

package classification

import (
	"context"

	"github.com/google/uuid"
)

// BatchRepository defines the persistence operations for batches. The
// datastore is the single source of truth shared by all workers; no
// in-process locking is layered on top of it.
type BatchRepository interface {
	// GetBatch retrieves a batch by ID.
	// Returns ErrBatchNotFound if the batch doesn't exist.
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)

	// UpdateBatch persists the batch's derived counters and status.
	// Returns ErrNoBatchUpdated if the batch row doesn't exist.
	UpdateBatch(ctx context.Context, batch *Batch) error

	// MarkIncompleteReported flips the one-time incomplete-batch flag.
	// It returns true only for the single call that performed the flip, so
	// the diagnostic is emitted exactly once across workers and restarts.
	MarkIncompleteReported(ctx context.Context, id uuid.UUID) (bool, error)
}

// ItemRepository defines the persistence operations for work items.
type ItemRepository interface {
	// GetItem retrieves a work item by ID.
	// Returns ErrItemNotFound if the item doesn't exist.
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)

	// UpdateItem persists the item's status, error message, content snapshot
	// and processed timestamp. Returns ErrNoItemUpdated if the row is missing.
	UpdateItem(ctx context.Context, item *Item) error

	// CountByStatus returns the per-status item totals for a batch.
	CountByStatus(ctx context.Context, batchID uuid.UUID) (StatusCounts, error)

	// CancelActive marks all pending and processing items of a batch
	// cancelled with the given message, returning how many were affected.
	CancelActive(ctx context.Context, batchID uuid.UUID, message string) (int64, error)
}

// ResultRepository persists classification results. Results are append-only.
type ResultRepository interface {
	// CreateResult stores a new classification result.
	CreateResult(ctx context.Context, result *Result) error
}

// PromptRepository reads stored classification prompts.
type PromptRepository interface {
	// GetPrompt retrieves a prompt by ID.
	// Returns ErrPromptNotFound if the prompt doesn't exist.
	GetPrompt(ctx context.Context, id uuid.UUID) (*Prompt, error)
}

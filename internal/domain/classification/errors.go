package classification

import "errors"

var (
	// ErrBatchNotFound indicates the requested batch doesn't exist.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrItemNotFound indicates the requested work item doesn't exist.
	ErrItemNotFound = errors.New("work item not found")

	// ErrPromptNotFound indicates the referenced prompt doesn't exist.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrNoBatchUpdated indicates an update matched no batch row.
	ErrNoBatchUpdated = errors.New("no batch was updated")

	// ErrNoItemUpdated indicates an update matched no item row.
	ErrNoItemUpdated = errors.New("no item was updated")
)

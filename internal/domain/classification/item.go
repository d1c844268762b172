package classification

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxStoredContentLen bounds the extracted-content snapshot persisted with a
// completed item. Only a prefix is kept to cap storage growth.
const MaxStoredContentLen = 5000

// Item is a single URL-classification unit of work. It owns the item status
// state machine: pending -> processing -> {completed, failed, cancelled}.
// Terminal transitions record the processing time and are never re-opened.
type Item struct {
	id           uuid.UUID
	batchID      uuid.UUID
	url          string
	status       ItemStatus
	errorMessage string
	content      string
	processedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewItem creates a pending work item for a batch.
func NewItem(id, batchID uuid.UUID, url string) *Item {
	now := time.Now().UTC()
	return &Item{
		id:        id,
		batchID:   batchID,
		url:       url,
		status:    ItemStatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructItem creates an Item from stored fields, bypassing creation
// invariants. This should only be used by repositories when loading from the DB.
func ReconstructItem(
	id, batchID uuid.UUID,
	url string,
	status ItemStatus,
	errorMessage string,
	content string,
	processedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Item {
	return &Item{
		id:           id,
		batchID:      batchID,
		url:          url,
		status:       status,
		errorMessage: errorMessage,
		content:      content,
		processedAt:  processedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the unique identifier for this item.
func (i *Item) ID() uuid.UUID { return i.id }

// BatchID returns the identifier of the parent batch.
func (i *Item) BatchID() uuid.UUID { return i.batchID }

// URL returns the target URL this item classifies.
func (i *Item) URL() string { return i.url }

// Status returns the current lifecycle status.
func (i *Item) Status() ItemStatus { return i.status }

// ErrorMessage returns the stored failure explanation, if any.
func (i *Item) ErrorMessage() string { return i.errorMessage }

// Content returns the truncated extracted-content snapshot.
func (i *Item) Content() string { return i.content }

// ProcessedAt returns the time of the terminal transition, if one occurred.
func (i *Item) ProcessedAt() *time.Time { return i.processedAt }

func (i *Item) CreatedAt() time.Time { return i.createdAt }
func (i *Item) UpdatedAt() time.Time { return i.updatedAt }

// Start transitions the item to processing. It is called by the pipeline
// immediately before the first externally visible side effect.
func (i *Item) Start() error {
	if err := i.status.validateTransition(ItemStatusProcessing); err != nil {
		return err
	}
	i.status = ItemStatusProcessing
	i.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions the item to completed, storing a bounded prefix of the
// extracted content. A completed item must have a persisted classification
// result; the pipeline enforces that ordering.
func (i *Item) Complete(extractedContent string) error {
	if err := i.status.validateTransition(ItemStatusCompleted); err != nil {
		return err
	}
	if len(extractedContent) > MaxStoredContentLen {
		cut := MaxStoredContentLen
		// Back off to a rune boundary so the stored prefix stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(extractedContent[cut]) {
			cut--
		}
		extractedContent = extractedContent[:cut]
	}
	i.status = ItemStatusCompleted
	i.content = extractedContent
	i.markProcessed()
	return nil
}

// Fail transitions the item to failed with a human-readable explanation.
func (i *Item) Fail(message string) error {
	if err := i.status.validateTransition(ItemStatusFailed); err != nil {
		return err
	}
	i.status = ItemStatusFailed
	i.errorMessage = message
	i.markProcessed()
	return nil
}

// Cancel transitions the item to cancelled. Only the external cancellation
// flow moves items into this state; the pipeline merely detects it.
func (i *Item) Cancel(message string) error {
	if err := i.status.validateTransition(ItemStatusCancelled); err != nil {
		return err
	}
	i.status = ItemStatusCancelled
	i.errorMessage = message
	i.markProcessed()
	return nil
}

func (i *Item) markProcessed() {
	now := time.Now().UTC()
	i.processedAt = &now
	i.updatedAt = now
}

package classification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Verdict is the structured output of the inference service for one item.
type Verdict struct {
	// IsLenderBroker is true when the site belongs to the target profile
	// (an MCA / alternative-funding lender or broker).
	IsLenderBroker bool

	// BusinessModel categorizes the operation: direct_lender, broker, hybrid,
	// unclear, or not_applicable.
	BusinessModel string

	// Confidence is the model's self-reported certainty in [0, 1].
	Confidence float64

	// PrimaryServices lists the funding products the site advertises.
	PrimaryServices []string

	// Evidence holds supporting excerpts from the extracted content.
	Evidence []string

	// ExclusionReason explains a negative verdict, empty otherwise.
	ExclusionReason string

	// Raw preserves the full response payload for auditing.
	Raw json.RawMessage
}

// Result is the append-only record of a successful classification attempt.
// At most one is produced per attempt; the core never updates or deletes it.
type Result struct {
	id        uuid.UUID
	itemID    uuid.UUID
	batchID   uuid.UUID
	verdict   Verdict
	createdAt time.Time
}

// NewResult creates a classification result for a work item.
func NewResult(id, itemID, batchID uuid.UUID, verdict Verdict) *Result {
	return &Result{
		id:        id,
		itemID:    itemID,
		batchID:   batchID,
		verdict:   verdict,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructResult creates a Result from stored fields. This should only be
// used by repositories when loading from the DB.
func ReconstructResult(id, itemID, batchID uuid.UUID, verdict Verdict, createdAt time.Time) *Result {
	return &Result{
		id:        id,
		itemID:    itemID,
		batchID:   batchID,
		verdict:   verdict,
		createdAt: createdAt,
	}
}

// ID returns the unique identifier for this result.
func (r *Result) ID() uuid.UUID { return r.id }

// ItemID returns the work item this result belongs to.
func (r *Result) ItemID() uuid.UUID { return r.itemID }

// BatchID returns the batch this result belongs to.
func (r *Result) BatchID() uuid.UUID { return r.batchID }

// Verdict returns the structured inference output.
func (r *Result) Verdict() Verdict { return r.verdict }

// CreatedAt returns when the result was recorded.
func (r *Result) CreatedAt() time.Time { return r.createdAt }

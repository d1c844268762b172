package classification

import "fmt"

// BatchStatus represents the aggregate state of a batch, derived from the
// statuses of its items by the progress aggregator.
type BatchStatus string

const (
	// BatchStatusPending indicates a batch has been created but no item has
	// been worked yet.
	BatchStatusPending BatchStatus = "PENDING"

	// BatchStatusProcessing indicates at least one item is being worked.
	BatchStatusProcessing BatchStatus = "PROCESSING"

	// BatchStatusCompleted indicates every intended item reached a terminal state.
	BatchStatusCompleted BatchStatus = "COMPLETED"

	// BatchStatusCancelled indicates the batch was cancelled. Cancellation is
	// absorbing: no recomputation may move the batch out of it.
	BatchStatusCancelled BatchStatus = "CANCELLED"

	// BatchStatusUnspecified is used when a batch status is unknown.
	BatchStatusUnspecified BatchStatus = "UNSPECIFIED"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string { return string(s) }

// ParseBatchStatus converts a string to a BatchStatus.
func ParseBatchStatus(s string) BatchStatus {
	switch s {
	case "PENDING":
		return BatchStatusPending
	case "PROCESSING":
		return BatchStatusProcessing
	case "COMPLETED":
		return BatchStatusCompleted
	case "CANCELLED":
		return BatchStatusCancelled
	default:
		return BatchStatusUnspecified
	}
}

// validateTransition checks if a status transition is valid and returns an error if not.
func (s BatchStatus) validateTransition(target BatchStatus) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid batch status transition from %s to %s", s, target)
	}
	return nil
}

// isValidTransition checks if the current status can transition to the target.
// All non-terminal states may be cancelled; cancelled and completed are final.
func (s BatchStatus) isValidTransition(target BatchStatus) bool {
	switch s {
	case BatchStatusPending:
		return target == BatchStatusProcessing || target == BatchStatusCompleted || target == BatchStatusCancelled
	case BatchStatusProcessing:
		return target == BatchStatusCompleted || target == BatchStatusCancelled
	case BatchStatusCompleted, BatchStatusCancelled:
		return false
	case BatchStatusUnspecified:
		return false
	default:
		return false
	}
}

package classification

import (
	"errors"
	"fmt"
)

// ItemStatus represents the lifecycle state of a single work item (one URL to
// classify). It enables tracking of item progress through the pipeline and
// enforcement of terminal-state immutability.
type ItemStatus string

// ErrItemStatusUnknown is returned when an item status string is unknown.
var ErrItemStatusUnknown = errors.New("item status unknown")

const (
	// ItemStatusPending indicates an item has been created but not yet leased.
	ItemStatusPending ItemStatus = "PENDING"

	// ItemStatusProcessing indicates the pipeline is actively working the item.
	ItemStatusProcessing ItemStatus = "PROCESSING"

	// ItemStatusCompleted indicates a classification result was persisted.
	ItemStatusCompleted ItemStatus = "COMPLETED"

	// ItemStatusFailed indicates the pipeline hit an unrecoverable error.
	ItemStatusFailed ItemStatus = "FAILED"

	// ItemStatusCancelled indicates an external cancellation reached the item
	// before the pipeline finished it.
	ItemStatusCancelled ItemStatus = "CANCELLED"

	// ItemStatusUnspecified is used when an item status is unknown.
	ItemStatusUnspecified ItemStatus = "UNSPECIFIED"
)

// String returns the string representation of the ItemStatus.
func (s ItemStatus) String() string { return string(s) }

// ParseItemStatus converts a string to an ItemStatus.
func ParseItemStatus(s string) ItemStatus {
	switch s {
	case "PENDING":
		return ItemStatusPending
	case "PROCESSING":
		return ItemStatusProcessing
	case "COMPLETED":
		return ItemStatusCompleted
	case "FAILED":
		return ItemStatusFailed
	case "CANCELLED":
		return ItemStatusCancelled
	default:
		return ItemStatusUnspecified
	}
}

// IsTerminal reports whether no further automatic transition can occur.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusCompleted || s == ItemStatusFailed || s == ItemStatusCancelled
}

// validateTransition checks if a status transition is valid and returns an error if not.
func (s ItemStatus) validateTransition(target ItemStatus) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid item status transition from %s to %s", s, target)
	}
	return nil
}

// isValidTransition checks if the current status can transition to the target
// status. Terminal states are absorbing; a processed item is never re-opened.
func (s ItemStatus) isValidTransition(target ItemStatus) bool {
	switch s {
	case ItemStatusPending:
		// From Pending, can move to Processing, or straight to a terminal
		// state via failure or external cancellation.
		return target == ItemStatusProcessing || target == ItemStatusFailed || target == ItemStatusCancelled
	case ItemStatusProcessing:
		return target == ItemStatusCompleted || target == ItemStatusFailed || target == ItemStatusCancelled
	case ItemStatusCompleted, ItemStatusFailed, ItemStatusCancelled:
		return false
	case ItemStatusUnspecified:
		return false
	default:
		return false
	}
}

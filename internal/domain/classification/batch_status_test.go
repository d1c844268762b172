package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBatchStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected BatchStatus
	}{
		{name: "pending", input: "PENDING", expected: BatchStatusPending},
		{name: "processing", input: "PROCESSING", expected: BatchStatusProcessing},
		{name: "completed", input: "COMPLETED", expected: BatchStatusCompleted},
		{name: "cancelled", input: "CANCELLED", expected: BatchStatusCancelled},
		{name: "unknown string", input: "NOPE", expected: BatchStatusUnspecified},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ParseBatchStatus(tt.input))
		})
	}
}

func TestBatchStatus_ValidateTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		currentStatus BatchStatus
		targetStatus  BatchStatus
		wantErr       bool
	}{
		{
			name:          "pending to processing",
			currentStatus: BatchStatusPending,
			targetStatus:  BatchStatusProcessing,
			wantErr:       false,
		},
		{
			name:          "pending to completed",
			currentStatus: BatchStatusPending,
			targetStatus:  BatchStatusCompleted,
			wantErr:       false,
		},
		{
			name:          "pending to cancelled",
			currentStatus: BatchStatusPending,
			targetStatus:  BatchStatusCancelled,
			wantErr:       false,
		},
		{
			name:          "processing to completed",
			currentStatus: BatchStatusProcessing,
			targetStatus:  BatchStatusCompleted,
			wantErr:       false,
		},
		{
			name:          "processing to cancelled",
			currentStatus: BatchStatusProcessing,
			targetStatus:  BatchStatusCancelled,
			wantErr:       false,
		},
		{
			name:          "processing to pending invalid",
			currentStatus: BatchStatusProcessing,
			targetStatus:  BatchStatusPending,
			wantErr:       true,
		},
		{
			name:          "completed to processing invalid",
			currentStatus: BatchStatusCompleted,
			targetStatus:  BatchStatusProcessing,
			wantErr:       true,
		},
		{
			name:          "completed to cancelled invalid",
			currentStatus: BatchStatusCompleted,
			targetStatus:  BatchStatusCancelled,
			wantErr:       true,
		},
		{
			name:          "cancelled to processing invalid",
			currentStatus: BatchStatusCancelled,
			targetStatus:  BatchStatusProcessing,
			wantErr:       true,
		},
		{
			name:          "cancelled to completed invalid",
			currentStatus: BatchStatusCancelled,
			targetStatus:  BatchStatusCompleted,
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.currentStatus.validateTransition(tt.targetStatus)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

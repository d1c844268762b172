// Package classification provides the application services that drive the
// batch URL classification pipeline: the cancellation guard, the pipeline
// executor, the progress aggregator, and the worker pool consuming the
// durable work queue.
package classification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClassifyTask is the work-queue payload describing one item to classify.
type ClassifyTask struct {
	ItemID   uuid.UUID  `json:"item_id"`
	BatchID  uuid.UUID  `json:"batch_id"`
	URL      string     `json:"url"`
	PromptID *uuid.UUID `json:"prompt_id,omitempty"`
}

// EnqueueOptions bounds the publish retry for a task: a failed produce is
// reattempted up to MaxAttempts times with Backoff between tries. Once a task
// reaches the topic, redelivery is governed solely by offset commits;
// business failures are terminal and never redelivered.
type EnqueueOptions struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultEnqueueOptions mirrors the retry policy the submission flow has
// always used: three attempts with a minute of backoff.
func DefaultEnqueueOptions() EnqueueOptions {
	return EnqueueOptions{MaxAttempts: 3, Backoff: time.Minute}
}

// Lease is a temporary exclusive grant of one task to one worker. Ack must be
// called after the pipeline returns, regardless of business outcome; an
// unacked lease is redelivered by the queue after worker failure.
type Lease struct {
	Task ClassifyTask
	Ack  func()
}

// WorkQueue is the thin interface over a durable, at-least-once work queue.
type WorkQueue interface {
	// Enqueue submits a task for processing.
	Enqueue(ctx context.Context, task ClassifyTask, opts EnqueueOptions) error

	// Leases returns a channel of leased tasks. The channel is closed when
	// the context is cancelled or the underlying consumer stops.
	Leases(ctx context.Context) (<-chan Lease, error)
}

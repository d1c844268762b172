package classification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

// cancelledByUserMessage is stored on items swept up by a batch cancellation.
const cancelledByUserMessage = "batch cancelled by user"

// BatchProgress is the read model of a batch's aggregate state, consumed by
// the HTTP/UI layer for display.
type BatchProgress struct {
	BatchID        uuid.UUID
	Name           string
	Status         classification.BatchStatus
	TotalCount     int
	CompletedCount int
	FailedCount    int
	UpdatedAt      time.Time
}

// Service is the interface the core exposes to the surrounding HTTP layer:
// submitting work items, reading batch progress, and cancelling batches.
type Service struct {
	queue   WorkQueue
	batches classification.BatchRepository
	items   classification.ItemRepository

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService wires the produced interface over the queue and repositories.
func NewService(
	queue WorkQueue,
	batches classification.BatchRepository,
	items classification.ItemRepository,
	log *logger.Logger,
	tracer trace.Tracer,
) *Service {
	return &Service{
		queue:   queue,
		batches: batches,
		items:   items,
		logger:  log.With("component", "classification_service"),
		tracer:  tracer,
	}
}

// SubmitItem enqueues one work item for classification with the standard
// retry policy.
func (s *Service) SubmitItem(ctx context.Context, task ClassifyTask) error {
	ctx, span := s.tracer.Start(ctx, "classification_service.submit_item",
		trace.WithAttributes(
			attribute.String("item_id", task.ItemID.String()),
			attribute.String("batch_id", task.BatchID.String()),
		))
	defer span.End()

	if task.ItemID == uuid.Nil || task.BatchID == uuid.Nil {
		return fmt.Errorf("submit item: item and batch ids are required")
	}
	if task.URL == "" {
		return fmt.Errorf("submit item: url is required")
	}

	if err := s.queue.Enqueue(ctx, task, DefaultEnqueueOptions()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("enqueueing work item: %w", err)
	}
	return nil
}

// Progress returns the current aggregate counters and status for a batch.
// The counters are a read-time aggregate and can transiently lag reality
// between recomputation passes.
func (s *Service) Progress(ctx context.Context, batchID uuid.UUID) (BatchProgress, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return BatchProgress{}, fmt.Errorf("reading batch: %w", err)
	}

	return BatchProgress{
		BatchID:        batch.ID(),
		Name:           batch.Name(),
		Status:         batch.Status(),
		TotalCount:     batch.TotalCount(),
		CompletedCount: batch.CompletedCount(),
		FailedCount:    batch.FailedCount(),
		UpdatedAt:      batch.UpdatedAt(),
	}, nil
}

// CancelBatch marks the batch cancelled and sweeps its pending and processing
// items into the cancelled state. Items already mid-pipeline may still finish
// normally; their next lease would have been skipped by the guard, and a
// result persisted past this point is an accepted race.
func (s *Service) CancelBatch(ctx context.Context, batchID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "classification_service.cancel_batch",
		trace.WithAttributes(attribute.String("batch_id", batchID.String())))
	defer span.End()

	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("reading batch: %w", err)
	}

	if err := batch.Cancel(); err != nil {
		return fmt.Errorf("cancelling batch: %w", err)
	}
	if err := s.batches.UpdateBatch(ctx, batch); err != nil {
		return fmt.Errorf("persisting batch cancellation: %w", err)
	}

	cancelled, err := s.items.CancelActive(ctx, batchID, cancelledByUserMessage)
	if err != nil {
		return fmt.Errorf("cancelling batch items: %w", err)
	}

	s.logger.Info(ctx, "batch cancelled", "batch_id", batchID, "items_cancelled", cancelled)
	return nil
}

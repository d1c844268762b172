package classification

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

// CancellationGuard answers whether a work item or its parent batch has
// already been cancelled. The check is best-effort and runs once before any
// side-effecting stage; cancellation landing mid-pipeline is resolved by
// last-write-wins on the item status.
type CancellationGuard struct {
	items   classification.ItemRepository
	batches classification.BatchRepository

	logger *logger.Logger
	tracer trace.Tracer
}

// NewCancellationGuard creates a guard over the item and batch repositories.
func NewCancellationGuard(
	items classification.ItemRepository,
	batches classification.BatchRepository,
	log *logger.Logger,
	tracer trace.Tracer,
) *CancellationGuard {
	return &CancellationGuard{
		items:   items,
		batches: batches,
		logger:  log.With("component", "cancellation_guard"),
		tracer:  tracer,
	}
}

// Check reports whether the item or its batch is cancelled. Read failures are
// treated as "not cancelled": the guard must never block the pipeline, and a
// missed cancellation only costs one redundant classification.
func (g *CancellationGuard) Check(ctx context.Context, itemID, batchID uuid.UUID) bool {
	ctx, span := g.tracer.Start(ctx, "cancellation_guard.check",
		trace.WithAttributes(
			attribute.String("item_id", itemID.String()),
			attribute.String("batch_id", batchID.String()),
		))
	defer span.End()

	item, err := g.items.GetItem(ctx, itemID)
	if err != nil {
		g.logger.Warn(ctx, "cancellation check could not read item, proceeding",
			"item_id", itemID, "error", err)
	} else if item.Status() == classification.ItemStatusCancelled {
		span.AddEvent("item_cancelled")
		return true
	}

	batch, err := g.batches.GetBatch(ctx, batchID)
	if err != nil {
		g.logger.Warn(ctx, "cancellation check could not read batch, proceeding",
			"batch_id", batchID, "error", err)
		return false
	}
	if batch.Status() == classification.BatchStatusCancelled {
		span.AddEvent("batch_cancelled")
		return true
	}

	return false
}

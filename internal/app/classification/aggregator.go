package classification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

// ProgressAggregator re-derives a batch's counters and status from the
// current item rows. Every invocation performs a full recomputation and an
// unconditional overwrite of the derived fields, so concurrent, duplicate or
// out-of-order invocations for the same batch converge to the same state.
// No locking is needed: correctness comes from the recompute-and-overwrite
// design, not from ordering.
type ProgressAggregator struct {
	batches classification.BatchRepository
	items   classification.ItemRepository

	logger  *logger.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// NewProgressAggregator creates an aggregator over the batch and item repositories.
func NewProgressAggregator(
	batches classification.BatchRepository,
	items classification.ItemRepository,
	log *logger.Logger,
	metrics Metrics,
	tracer trace.Tracer,
) *ProgressAggregator {
	return &ProgressAggregator{
		batches: batches,
		items:   items,
		logger:  log.With("component", "progress_aggregator"),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Recompute refreshes the batch's derived counters and status. Datastore
// failures are logged, counted and swallowed: a bookkeeping failure must
// never surface to the item or the queue, because the classification result
// is already durable and must not be retried for it.
func (a *ProgressAggregator) Recompute(ctx context.Context, batchID uuid.UUID) {
	ctx, span := a.tracer.Start(ctx, "progress_aggregator.recompute",
		trace.WithAttributes(attribute.String("batch_id", batchID.String())))
	defer span.End()

	if err := a.recompute(ctx, batchID); err != nil {
		span.RecordError(err)
		a.metrics.IncAggregationFailure(ctx)
		a.logger.Warn(ctx, "batch progress recomputation skipped",
			"batch_id", batchID, "error", err)
	}
}

func (a *ProgressAggregator) recompute(ctx context.Context, batchID uuid.UUID) error {
	batch, err := a.batches.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("reading batch: %w", err)
	}

	counts, err := a.items.CountByStatus(ctx, batchID)
	if err != nil {
		return fmt.Errorf("counting items: %w", err)
	}

	if incomplete := batch.ApplyProgress(counts); incomplete {
		a.reportIncomplete(ctx, batch, counts)
	}

	if err := a.batches.UpdateBatch(ctx, batch); err != nil {
		return fmt.Errorf("writing batch progress: %w", err)
	}
	return nil
}

// reportIncomplete emits the incomplete-batch diagnostic at most once per
// batch. The once-ness is recorded on the batch row itself so it holds across
// worker processes and restarts.
func (a *ProgressAggregator) reportIncomplete(
	ctx context.Context,
	batch *classification.Batch,
	counts classification.StatusCounts,
) {
	first, err := a.batches.MarkIncompleteReported(ctx, batch.ID())
	if err != nil {
		a.logger.Warn(ctx, "could not record incomplete-batch flag",
			"batch_id", batch.ID(), "error", err)
		return
	}
	if !first {
		return
	}

	a.logger.Warn(ctx, "batch has fewer item rows than its intended total",
		"batch_id", batch.ID(),
		"item_rows", counts.Total(),
		"total_count", batch.TotalCount(),
	)
}

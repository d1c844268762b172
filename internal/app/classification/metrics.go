package classification

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics defines the observability signals the pipeline emits. Aggregation
// failures are swallowed by design, so the counter here is the only way they
// surface.
type Metrics interface {
	IncItemCompleted(ctx context.Context)
	IncItemFailed(ctx context.Context)
	IncItemSkippedCancelled(ctx context.Context)
	IncAggregationFailure(ctx context.Context)
	SetActiveWorkers(ctx context.Context, count int)
}

// pipelineMetrics implements Metrics on top of an OpenTelemetry meter.
type pipelineMetrics struct {
	itemsCompleted      metric.Int64Counter
	itemsFailed         metric.Int64Counter
	itemsSkipped        metric.Int64Counter
	aggregationFailures metric.Int64Counter
	activeWorkers       metric.Int64Gauge
}

// NewMetrics constructs the pipeline's metric instruments from a meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	itemsCompleted, err := meter.Int64Counter("classification_items_completed_total",
		metric.WithDescription("Work items that reached the completed state"))
	if err != nil {
		return nil, fmt.Errorf("creating items completed counter: %w", err)
	}

	itemsFailed, err := meter.Int64Counter("classification_items_failed_total",
		metric.WithDescription("Work items that reached the failed state"))
	if err != nil {
		return nil, fmt.Errorf("creating items failed counter: %w", err)
	}

	itemsSkipped, err := meter.Int64Counter("classification_items_skipped_cancelled_total",
		metric.WithDescription("Leased items skipped because the item or batch was cancelled"))
	if err != nil {
		return nil, fmt.Errorf("creating items skipped counter: %w", err)
	}

	aggregationFailures, err := meter.Int64Counter("classification_aggregation_failures_total",
		metric.WithDescription("Progress recomputations that were logged and swallowed"))
	if err != nil {
		return nil, fmt.Errorf("creating aggregation failures counter: %w", err)
	}

	activeWorkers, err := meter.Int64Gauge("classification_active_workers",
		metric.WithDescription("Size of the worker pool"))
	if err != nil {
		return nil, fmt.Errorf("creating active workers gauge: %w", err)
	}

	return &pipelineMetrics{
		itemsCompleted:      itemsCompleted,
		itemsFailed:         itemsFailed,
		itemsSkipped:        itemsSkipped,
		aggregationFailures: aggregationFailures,
		activeWorkers:       activeWorkers,
	}, nil
}

func (m *pipelineMetrics) IncItemCompleted(ctx context.Context) { m.itemsCompleted.Add(ctx, 1) }
func (m *pipelineMetrics) IncItemFailed(ctx context.Context)    { m.itemsFailed.Add(ctx, 1) }
func (m *pipelineMetrics) IncItemSkippedCancelled(ctx context.Context) {
	m.itemsSkipped.Add(ctx, 1)
}
func (m *pipelineMetrics) IncAggregationFailure(ctx context.Context) {
	m.aggregationFailures.Add(ctx, 1)
}
func (m *pipelineMetrics) SetActiveWorkers(ctx context.Context, count int) {
	m.activeWorkers.Record(ctx, int64(count))
}

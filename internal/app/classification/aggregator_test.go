package classification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	domain "github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/internal/infra/storage/classification/memory"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

type aggregatorFixture struct {
	aggregator *ProgressAggregator
	batches    *memory.BatchStore
	items      *memory.ItemStore
	metrics    *countingMetrics
}

func newAggregatorFixture() *aggregatorFixture {
	batches := memory.NewBatchStore()
	items := memory.NewItemStore()
	metrics := &countingMetrics{}
	tracer := noop.NewTracerProvider().Tracer("test-tracer")
	aggregator := NewProgressAggregator(batches, items, logger.Noop(), metrics, tracer)
	return &aggregatorFixture{aggregator: aggregator, batches: batches, items: items, metrics: metrics}
}

func (f *aggregatorFixture) seedBatch(t *testing.T, totalCount int) *domain.Batch {
	t.Helper()
	batch := domain.NewBatch(uuid.New(), "b", nil, totalCount)
	f.batches.Put(batch)
	return batch
}

func (f *aggregatorFixture) seedItem(t *testing.T, batchID uuid.UUID, status domain.ItemStatus) {
	t.Helper()
	item := domain.NewItem(uuid.New(), batchID, "https://example.com")
	switch status {
	case domain.ItemStatusProcessing:
		require.NoError(t, item.Start())
	case domain.ItemStatusCompleted:
		require.NoError(t, item.Start())
		require.NoError(t, item.Complete("text"))
	case domain.ItemStatusFailed:
		require.NoError(t, item.Start())
		require.NoError(t, item.Fail("boom"))
	case domain.ItemStatusCancelled:
		require.NoError(t, item.Cancel("batch cancelled by user"))
	}
	f.items.Put(item)
}

func TestProgressAggregator_Recompute(t *testing.T) {
	t.Parallel()

	t.Run("mixed items move batch to processing", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 4)
		f.seedItem(t, batch.ID(), domain.ItemStatusPending)
		f.seedItem(t, batch.ID(), domain.ItemStatusProcessing)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.seedItem(t, batch.ID(), domain.ItemStatusFailed)

		f.aggregator.Recompute(context.Background(), batch.ID())

		got, err := f.batches.GetBatch(context.Background(), batch.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.BatchStatusProcessing, got.Status())
		assert.Equal(t, 1, got.CompletedCount())
		assert.Equal(t, 1, got.FailedCount())
	})

	t.Run("all terminal completes the batch", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 3)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.seedItem(t, batch.ID(), domain.ItemStatusFailed)
		f.seedItem(t, batch.ID(), domain.ItemStatusCancelled)

		f.aggregator.Recompute(context.Background(), batch.ID())

		got, err := f.batches.GetBatch(context.Background(), batch.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.BatchStatusCompleted, got.Status())
		assert.Equal(t, 1, got.CompletedCount())
		assert.Equal(t, 1, got.FailedCount())
	})

	t.Run("duplicate invocations converge", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 2)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)

		for range 5 {
			f.aggregator.Recompute(context.Background(), batch.ID())
		}

		got, err := f.batches.GetBatch(context.Background(), batch.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.BatchStatusCompleted, got.Status())
		assert.Equal(t, 2, got.CompletedCount())
		assert.Equal(t, int64(0), f.metrics.aggregationFailure.Load())
	})

	t.Run("concurrent invocations converge", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 2)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.seedItem(t, batch.ID(), domain.ItemStatusFailed)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.aggregator.Recompute(context.Background(), batch.ID())
			}()
		}
		wg.Wait()

		got, err := f.batches.GetBatch(context.Background(), batch.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.BatchStatusCompleted, got.Status())
		assert.Equal(t, 1, got.CompletedCount())
		assert.Equal(t, 1, got.FailedCount())
	})

	t.Run("cancelled batch keeps its status", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := domain.NewBatch(uuid.New(), "b", nil, 2)
		require.NoError(t, batch.Cancel())
		f.batches.Put(batch)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)

		f.aggregator.Recompute(context.Background(), batch.ID())

		got, err := f.batches.GetBatch(context.Background(), batch.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.BatchStatusCancelled, got.Status())
		assert.Equal(t, 2, got.CompletedCount())
	})

	t.Run("read failure is swallowed and counted", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 1)
		f.items.CountErr = errors.New("connection refused")

		f.aggregator.Recompute(context.Background(), batch.ID())

		assert.Equal(t, int64(1), f.metrics.aggregationFailure.Load())
	})

	t.Run("write failure is swallowed and counted", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 1)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.batches.UpdateErr = errors.New("connection refused")

		f.aggregator.Recompute(context.Background(), batch.ID())

		assert.Equal(t, int64(1), f.metrics.aggregationFailure.Load())
	})

	t.Run("missing batch is swallowed and counted", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()

		f.aggregator.Recompute(context.Background(), uuid.New())

		assert.Equal(t, int64(1), f.metrics.aggregationFailure.Load())
	})
}

func TestProgressAggregator_IncompleteDiagnostic(t *testing.T) {
	t.Parallel()

	t.Run("incomplete batch is flagged exactly once", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 5)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)

		for range 10 {
			f.aggregator.Recompute(context.Background(), batch.ID())
		}

		got, err := f.batches.GetBatch(context.Background(), batch.ID())
		require.NoError(t, err)
		require.NotNil(t, got.IncompleteReportedAt())
		// Counters still refresh even while the row set is short.
		assert.Equal(t, 2, got.CompletedCount())
		// Status never flapped to completed.
		assert.Equal(t, domain.BatchStatusPending, got.Status())
	})

	t.Run("full batch never sets the flag", func(t *testing.T) {
		t.Parallel()

		f := newAggregatorFixture()
		batch := f.seedBatch(t, 2)
		f.seedItem(t, batch.ID(), domain.ItemStatusCompleted)
		f.seedItem(t, batch.ID(), domain.ItemStatusProcessing)

		f.aggregator.Recompute(context.Background(), batch.ID())

		got, err := f.batches.GetBatch(context.Background(), batch.ID())
		require.NoError(t, err)
		assert.Nil(t, got.IncompleteReportedAt())
	})
}

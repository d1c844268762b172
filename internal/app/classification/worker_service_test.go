package classification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	domain "github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

func TestWorkerService_Run_ProcessesAndAcks(t *testing.T) {
	t.Parallel()

	const numItems = 8

	f := newExecutorFixture(DefaultTimeouts())
	queue := newStubQueue(numItems)

	batch := domain.NewBatch(uuid.New(), "b", nil, numItems)
	f.batches.Put(batch)

	for range numItems {
		item := domain.NewItem(uuid.New(), batch.ID(), "https://example.com")
		f.items.Put(item)
		require.NoError(t, queue.Enqueue(context.Background(),
			ClassifyTask{ItemID: item.ID(), BatchID: batch.ID(), URL: item.URL()},
			DefaultEnqueueOptions()))
	}
	close(queue.leases)

	tracer := noop.NewTracerProvider().Tracer("test-tracer")
	svc := NewWorkerService(queue, f.executor, 3, logger.Noop(), f.metrics, tracer)

	require.NoError(t, svc.Run(context.Background()))

	assert.Len(t, queue.ackedTasks(), numItems)
	assert.Equal(t, int64(numItems), f.metrics.completed.Load())

	got, err := f.batches.GetBatch(context.Background(), batch.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, got.Status())
	assert.Equal(t, numItems, got.CompletedCount())
}

func TestWorkerService_Run_FailedItemsStillAcked(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(DefaultTimeouts())
	f.extract = func(context.Context, string) (string, error) {
		return "", context.DeadlineExceeded
	}
	queue := newStubQueue(1)

	batch := domain.NewBatch(uuid.New(), "b", nil, 1)
	f.batches.Put(batch)
	item := domain.NewItem(uuid.New(), batch.ID(), "https://example.com")
	f.items.Put(item)
	require.NoError(t, queue.Enqueue(context.Background(),
		ClassifyTask{ItemID: item.ID(), BatchID: batch.ID(), URL: item.URL()},
		DefaultEnqueueOptions()))
	close(queue.leases)

	tracer := noop.NewTracerProvider().Tracer("test-tracer")
	svc := NewWorkerService(queue, f.executor, 1, logger.Noop(), f.metrics, tracer)

	require.NoError(t, svc.Run(context.Background()))

	// A business failure is a terminal outcome; the lease must not redeliver.
	assert.Len(t, queue.ackedTasks(), 1)

	got, err := f.items.GetItem(context.Background(), item.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusFailed, got.Status())
}

func TestWorkerService_Run_ShutdownLeavesLeaseUnacked(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(DefaultTimeouts())
	queue := newStubQueue(1)

	ctx, cancel := context.WithCancel(context.Background())
	f.extract = func(extractCtx context.Context, _ string) (string, error) {
		cancel()
		<-extractCtx.Done()
		return "", extractCtx.Err()
	}

	batch := domain.NewBatch(uuid.New(), "b", nil, 1)
	f.batches.Put(batch)
	item := domain.NewItem(uuid.New(), batch.ID(), "https://example.com")
	f.items.Put(item)
	require.NoError(t, queue.Enqueue(context.Background(),
		ClassifyTask{ItemID: item.ID(), BatchID: batch.ID(), URL: item.URL()},
		DefaultEnqueueOptions()))
	close(queue.leases)

	tracer := noop.NewTracerProvider().Tracer("test-tracer")
	svc := NewWorkerService(queue, f.executor, 1, logger.Noop(), f.metrics, tracer)

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, queue.ackedTasks())
}

func TestWorkerService_Run_LeaseChannelError(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(DefaultTimeouts())
	tracer := noop.NewTracerProvider().Tracer("test-tracer")
	svc := NewWorkerService(failingLeaseQueue{}, f.executor, 1, logger.Noop(), f.metrics, tracer)

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting lease consumption")
}

type failingLeaseQueue struct{}

func (failingLeaseQueue) Enqueue(context.Context, ClassifyTask, EnqueueOptions) error { return nil }
func (failingLeaseQueue) Leases(context.Context) (<-chan Lease, error) {
	return nil, context.DeadlineExceeded
}

// Guards against the pool blocking shutdown when no leases arrive.
func TestWorkerService_Run_StopsWhenLeaseChannelCloses(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(DefaultTimeouts())
	queue := newStubQueue(0)
	close(queue.leases)

	tracer := noop.NewTracerProvider().Tracer("test-tracer")
	svc := NewWorkerService(queue, f.executor, 4, logger.Noop(), f.metrics, tracer)

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker service did not stop after lease channel closed")
	}
}

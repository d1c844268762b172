package classification

import (
	"context"
	"sync"
	"sync/atomic"

	domain "github.com/lenderlens/lenderlens/internal/domain/classification"
)

// countingMetrics implements Metrics with plain counters so tests can assert
// on emitted signals.
type countingMetrics struct {
	completed          atomic.Int64
	failed             atomic.Int64
	skippedCancelled   atomic.Int64
	aggregationFailure atomic.Int64
	activeWorkers      atomic.Int64
}

func (m *countingMetrics) IncItemCompleted(context.Context)        { m.completed.Add(1) }
func (m *countingMetrics) IncItemFailed(context.Context)           { m.failed.Add(1) }
func (m *countingMetrics) IncItemSkippedCancelled(context.Context) { m.skippedCancelled.Add(1) }
func (m *countingMetrics) IncAggregationFailure(context.Context)   { m.aggregationFailure.Add(1) }
func (m *countingMetrics) SetActiveWorkers(_ context.Context, count int) {
	m.activeWorkers.Store(int64(count))
}

// stubExtractor implements ContentExtractor with a supplied function.
type stubExtractor struct {
	fn func(ctx context.Context, url string) (string, error)
}

func (s *stubExtractor) Extract(ctx context.Context, url string) (string, error) {
	return s.fn(ctx, url)
}

// stubInference implements InferenceClient with a supplied function.
type stubInference struct {
	fn func(ctx context.Context, req InferenceRequest) (domain.Verdict, error)
}

func (s *stubInference) Classify(ctx context.Context, req InferenceRequest) (domain.Verdict, error) {
	return s.fn(ctx, req)
}

// stubQueue implements WorkQueue over an in-process channel and records
// enqueued tasks and acks.
type stubQueue struct {
	mu       sync.Mutex
	enqueued []ClassifyTask
	acked    []ClassifyTask
	leases   chan Lease
}

func newStubQueue(capacity int) *stubQueue {
	return &stubQueue{leases: make(chan Lease, capacity)}
}

func (q *stubQueue) Enqueue(_ context.Context, task ClassifyTask, _ EnqueueOptions) error {
	q.mu.Lock()
	q.enqueued = append(q.enqueued, task)
	q.mu.Unlock()

	q.leases <- Lease{
		Task: task,
		Ack: func() {
			q.mu.Lock()
			q.acked = append(q.acked, task)
			q.mu.Unlock()
		},
	}
	return nil
}

func (q *stubQueue) Leases(context.Context) (<-chan Lease, error) { return q.leases, nil }

func (q *stubQueue) ackedTasks() []ClassifyTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ClassifyTask, len(q.acked))
	copy(out, q.acked)
	return out
}

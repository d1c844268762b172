package classification

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

// WorkerService runs a fixed-size pool of workers, each processing at most
// one leased task at a time. The pool bounds total in-flight classification
// work; the queue's lease mechanism handles redelivery when a worker dies
// mid-task.
type WorkerService struct {
	queue    WorkQueue
	executor *PipelineExecutor
	workers  int

	logger  *logger.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// NewWorkerService creates the pool with the configured concurrency level.
func NewWorkerService(
	queue WorkQueue,
	executor *PipelineExecutor,
	workers int,
	log *logger.Logger,
	metrics Metrics,
	tracer trace.Tracer,
) *WorkerService {
	return &WorkerService{
		queue:    queue,
		executor: executor,
		workers:  workers,
		logger:   log.With("component", "worker_service", "num_workers", workers),
		metrics:  metrics,
		tracer:   tracer,
	}
}

// Run consumes leases until the context is cancelled and all workers drain.
func (s *WorkerService) Run(ctx context.Context) error {
	leases, err := s.queue.Leases(ctx)
	if err != nil {
		return fmt.Errorf("starting lease consumption: %w", err)
	}

	s.logger.Info(ctx, "worker service starting")
	s.metrics.SetActiveWorkers(ctx, s.workers)

	var wg sync.WaitGroup
	wg.Add(s.workers)
	for i := range s.workers {
		go func(workerID int) {
			defer wg.Done()
			s.workerLoop(ctx, workerID, leases)
		}(i)
	}
	wg.Wait()

	s.metrics.SetActiveWorkers(ctx, 0)
	s.logger.Info(ctx, "worker service stopped")
	return ctx.Err()
}

// workerLoop processes leases sequentially. The lease is acked after the
// executor returns, whether the item completed or failed; only an aborted
// pipeline (shutdown mid-flight) leaves the lease for redelivery.
func (s *WorkerService) workerLoop(ctx context.Context, workerID int, leases <-chan Lease) {
	workerLogger := s.logger.With("worker_id", workerID)

	for lease := range leases {
		if err := s.executor.Process(ctx, lease.Task); err != nil {
			workerLogger.Warn(ctx, "task aborted before terminal state, leaving lease unacked",
				"item_id", lease.Task.ItemID, "error", err)
			continue
		}
		lease.Ack()
	}
}

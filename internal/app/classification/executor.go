package classification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

// Timeouts bounds the network-bound pipeline stages. Overall is the backstop
// against cumulative slowness and must exceed the sum of the stage timeouts.
type Timeouts struct {
	Extraction time.Duration
	Inference  time.Duration
	Overall    time.Duration
}

// DefaultTimeouts returns the stage and pipeline deadlines used in production.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Extraction: 10 * time.Second,
		Inference:  30 * time.Second,
		Overall:    60 * time.Second,
	}
}

// PipelineExecutor runs the ordered classification stages for one leased work
// item: cancellation check, mark processing, content extraction, prompt
// resolution, inference, result persistence, item completion, progress
// recomputation. Stages are strictly sequential; parallelism is across items
// only. Every business failure is converted to a terminal failed item so the
// queue's retry machinery only ever acts on process crashes.
type PipelineExecutor struct {
	guard      *CancellationGuard
	aggregator *ProgressAggregator

	items   classification.ItemRepository
	results classification.ResultRepository
	prompts classification.PromptRepository

	extractor ContentExtractor
	inference InferenceClient

	timeouts Timeouts

	logger  *logger.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// NewPipelineExecutor wires the executor with its collaborators.
func NewPipelineExecutor(
	guard *CancellationGuard,
	aggregator *ProgressAggregator,
	items classification.ItemRepository,
	results classification.ResultRepository,
	prompts classification.PromptRepository,
	extractor ContentExtractor,
	inference InferenceClient,
	timeouts Timeouts,
	log *logger.Logger,
	metrics Metrics,
	tracer trace.Tracer,
) *PipelineExecutor {
	return &PipelineExecutor{
		guard:      guard,
		aggregator: aggregator,
		items:      items,
		results:    results,
		prompts:    prompts,
		extractor:  extractor,
		inference:  inference,
		timeouts:   timeouts,
		logger:     log.With("component", "pipeline_executor"),
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Process executes the full pipeline for one task under the overall deadline.
// It returns a non-nil error only when the parent context was cancelled
// (worker shutdown) before the item reached a terminal state; callers must
// then leave the lease unacked so the queue redelivers. All business
// outcomes, including the overall timeout, return nil.
func (e *PipelineExecutor) Process(ctx context.Context, task ClassifyTask) error {
	ctx, span := e.tracer.Start(ctx, "pipeline_executor.process",
		trace.WithAttributes(
			attribute.String("item_id", task.ItemID.String()),
			attribute.String("batch_id", task.BatchID.String()),
			attribute.String("url", task.URL),
		))
	defer span.End()

	overallCtx, cancel := context.WithTimeout(ctx, e.timeouts.Overall)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.run(overallCtx, task)
	}()

	select {
	case <-done:
		if overallCtx.Err() == nil {
			return nil
		}
		// The attempt unwound right as the deadline fired; fall through to
		// the same handling as the blocked case below.
	case <-overallCtx.Done():
	}

	if ctx.Err() != nil {
		// Worker shutdown, not a slow pipeline. Leave the item for
		// redelivery; every stage is safely re-runnable.
		return ctx.Err()
	}

	// Backstop path: the deadline fired before any single stage did,
	// e.g. under scheduler contention. This write may race the still
	// in-flight attempt; the later status write wins and the aggregator
	// is idempotent, so the duplicate invocation is harmless.
	span.AddEvent("overall_deadline_exceeded")
	failCtx := context.WithoutCancel(ctx)
	e.failItem(failCtx, task.ItemID,
		fmt.Sprintf("classification timed out after %s for %s", e.timeouts.Overall, task.URL))
	e.aggregator.Recompute(failCtx, task.BatchID)
	return nil
}

func (e *PipelineExecutor) run(ctx context.Context, task ClassifyTask) {
	if e.guard.Check(ctx, task.ItemID, task.BatchID) {
		e.logger.Info(ctx, "skipping cancelled item",
			"item_id", task.ItemID, "batch_id", task.BatchID, "url", task.URL)
		e.metrics.IncItemSkippedCancelled(ctx)
		// The batch may be waiting only on already-cancelled items, so
		// progress still has to be recomputed.
		e.aggregator.Recompute(ctx, task.BatchID)
		return
	}

	if err := e.classify(ctx, task); err != nil {
		if ctx.Err() != nil {
			// Overall deadline or shutdown; Process owns that outcome.
			return
		}
		e.failItem(ctx, task.ItemID, err.Error())
		e.aggregator.Recompute(ctx, task.BatchID)
		return
	}

	e.metrics.IncItemCompleted(ctx)
	e.aggregator.Recompute(ctx, task.BatchID)
}

// classify runs stages (2) through (7). Any returned error is a terminal
// business failure whose message is stored on the item.
func (e *PipelineExecutor) classify(ctx context.Context, task ClassifyTask) error {
	item, err := e.items.GetItem(ctx, task.ItemID)
	if err != nil {
		return fmt.Errorf("loading work item: %w", err)
	}

	if err := item.Start(); err != nil {
		return fmt.Errorf("starting work item: %w", err)
	}
	if err := e.items.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("marking work item processing: %w", err)
	}

	extractCtx, cancelExtract := context.WithTimeout(ctx, e.timeouts.Extraction)
	text, err := e.extractor.Extract(extractCtx, task.URL)
	cancelExtract()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("content extraction timed out after %s", e.timeouts.Extraction)
		}
		return fmt.Errorf("content extraction failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("no content extracted from website")
	}

	prompt := e.resolvePrompt(ctx, task.PromptID)

	inferCtx, cancelInfer := context.WithTimeout(ctx, e.timeouts.Inference)
	verdict, err := e.inference.Classify(inferCtx, InferenceRequest{
		SystemPrompt: prompt.SystemPrompt(),
		Model:        prompt.Model(),
		Content:      text,
	})
	cancelInfer()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("inference timed out after %s", e.timeouts.Inference)
		}
		return fmt.Errorf("inference failed: %w", err)
	}

	result := classification.NewResult(uuid.New(), task.ItemID, task.BatchID, verdict)
	if err := e.results.CreateResult(ctx, result); err != nil {
		return fmt.Errorf("persisting classification result: %w", err)
	}

	if err := item.Complete(text); err != nil {
		return fmt.Errorf("completing work item: %w", err)
	}
	if err := e.items.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("marking work item completed: %w", err)
	}

	e.logger.Info(ctx, "work item classified",
		"item_id", task.ItemID, "url", task.URL,
		"is_lender_broker", verdict.IsLenderBroker, "confidence", verdict.Confidence)
	return nil
}

// resolvePrompt returns the batch's prompt when one is referenced, falling
// back to the built-in default when it is absent or unreadable.
func (e *PipelineExecutor) resolvePrompt(ctx context.Context, promptID *uuid.UUID) *classification.Prompt {
	if promptID == nil {
		return classification.DefaultPrompt()
	}

	prompt, err := e.prompts.GetPrompt(ctx, *promptID)
	if err != nil {
		e.logger.Warn(ctx, "prompt lookup failed, using default",
			"prompt_id", *promptID, "error", err)
		return classification.DefaultPrompt()
	}
	return prompt
}

// failItem forces the item into the failed state with a stored explanation.
// If a concurrent write already made the item terminal, the earlier outcome
// stands and this write is dropped.
func (e *PipelineExecutor) failItem(ctx context.Context, itemID uuid.UUID, message string) {
	item, err := e.items.GetItem(ctx, itemID)
	if err != nil {
		e.logger.Error(ctx, "could not load item to record failure",
			"item_id", itemID, "error", err)
		return
	}

	if err := item.Fail(message); err != nil {
		e.logger.Info(ctx, "item already terminal, keeping existing status",
			"item_id", itemID, "status", item.Status())
		return
	}

	if err := e.items.UpdateItem(ctx, item); err != nil {
		e.logger.Error(ctx, "could not persist item failure",
			"item_id", itemID, "error", err)
		return
	}

	e.metrics.IncItemFailed(ctx)
	e.logger.Info(ctx, "work item failed", "item_id", itemID, "error_message", message)
}

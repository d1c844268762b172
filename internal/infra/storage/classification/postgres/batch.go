// Package postgres provides PostgreSQL-backed repositories for the
// classification domain.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/internal/infra/storage"
)

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

var _ classification.BatchRepository = (*batchStore)(nil)

// batchStore implements classification.BatchRepository.
type batchStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewBatchStore creates a PostgreSQL-backed batch repository.
func NewBatchStore(pool *pgxpool.Pool, tracer trace.Tracer) *batchStore {
	return &batchStore{db: pool, tracer: tracer}
}

// GetBatch retrieves a batch by ID.
func (s *batchStore) GetBatch(ctx context.Context, id uuid.UUID) (*classification.Batch, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("batch_id", id.String()))

	var batch *classification.Batch
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_batch", dbAttrs, func(ctx context.Context) error {
		row := s.db.QueryRow(ctx, `
			SELECT id, name, prompt_id, total_count, completed_count, failed_count,
			       status, incomplete_reported_at, created_at, updated_at
			FROM batches
			WHERE id = $1`,
			pgtype.UUID{Bytes: id, Valid: true},
		)

		var (
			batchID              pgtype.UUID
			name                 string
			promptID             pgtype.UUID
			totalCount           int32
			completedCount       int32
			failedCount          int32
			status               string
			incompleteReportedAt pgtype.Timestamptz
			createdAt            pgtype.Timestamptz
			updatedAt            pgtype.Timestamptz
		)
		if err := row.Scan(
			&batchID, &name, &promptID, &totalCount, &completedCount, &failedCount,
			&status, &incompleteReportedAt, &createdAt, &updatedAt,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classification.ErrBatchNotFound
			}
			return fmt.Errorf("GetBatch query error: %w", err)
		}

		var prompt *uuid.UUID
		if promptID.Valid {
			p := uuid.UUID(promptID.Bytes)
			prompt = &p
		}

		batch = classification.ReconstructBatch(
			uuid.UUID(batchID.Bytes),
			name,
			prompt,
			int(totalCount), int(completedCount), int(failedCount),
			classification.ParseBatchStatus(status),
			timePtr(incompleteReportedAt),
			createdAt.Time, updatedAt.Time,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// UpdateBatch persists the derived counters and status.
func (s *batchStore) UpdateBatch(ctx context.Context, batch *classification.Batch) error {
	dbAttrs := append(defaultDBAttributes,
		attribute.String("batch_id", batch.ID().String()),
		attribute.String("status", batch.Status().String()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_batch", dbAttrs, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE batches
			SET completed_count = $2, failed_count = $3, status = $4, updated_at = now()
			WHERE id = $1`,
			pgtype.UUID{Bytes: batch.ID(), Valid: true},
			int32(batch.CompletedCount()),
			int32(batch.FailedCount()),
			batch.Status().String(),
		)
		if err != nil {
			return fmt.Errorf("UpdateBatch exec error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classification.ErrNoBatchUpdated
		}
		return nil
	})
}

// MarkIncompleteReported flips the one-time incomplete flag with a
// compare-and-set so exactly one caller across all workers observes true.
func (s *batchStore) MarkIncompleteReported(ctx context.Context, id uuid.UUID) (bool, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("batch_id", id.String()))

	var first bool
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.mark_incomplete_reported", dbAttrs, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE batches
			SET incomplete_reported_at = now()
			WHERE id = $1 AND incomplete_reported_at IS NULL`,
			pgtype.UUID{Bytes: id, Valid: true},
		)
		if err != nil {
			return fmt.Errorf("MarkIncompleteReported exec error: %w", err)
		}
		first = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return first, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

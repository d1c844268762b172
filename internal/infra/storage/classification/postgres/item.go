package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/internal/infra/storage"
)

var _ classification.ItemRepository = (*itemStore)(nil)

// itemStore implements classification.ItemRepository over the websites table.
type itemStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewItemStore creates a PostgreSQL-backed work item repository.
func NewItemStore(pool *pgxpool.Pool, tracer trace.Tracer) *itemStore {
	return &itemStore{db: pool, tracer: tracer}
}

// GetItem retrieves a work item by ID.
func (s *itemStore) GetItem(ctx context.Context, id uuid.UUID) (*classification.Item, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("item_id", id.String()))

	var item *classification.Item
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_item", dbAttrs, func(ctx context.Context) error {
		row := s.db.QueryRow(ctx, `
			SELECT id, batch_id, url, status, error_message, scraped_text,
			       processed_at, created_at, updated_at
			FROM websites
			WHERE id = $1`,
			pgtype.UUID{Bytes: id, Valid: true},
		)

		var (
			itemID       pgtype.UUID
			batchID      pgtype.UUID
			url          string
			status       string
			errorMessage pgtype.Text
			scrapedText  pgtype.Text
			processedAt  pgtype.Timestamptz
			createdAt    pgtype.Timestamptz
			updatedAt    pgtype.Timestamptz
		)
		if err := row.Scan(
			&itemID, &batchID, &url, &status, &errorMessage, &scrapedText,
			&processedAt, &createdAt, &updatedAt,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classification.ErrItemNotFound
			}
			return fmt.Errorf("GetItem query error: %w", err)
		}

		item = classification.ReconstructItem(
			uuid.UUID(itemID.Bytes),
			uuid.UUID(batchID.Bytes),
			url,
			classification.ParseItemStatus(status),
			errorMessage.String,
			scrapedText.String,
			timePtr(processedAt),
			createdAt.Time, updatedAt.Time,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem persists the item's status, error message, content snapshot and
// processed timestamp.
func (s *itemStore) UpdateItem(ctx context.Context, item *classification.Item) error {
	dbAttrs := append(defaultDBAttributes,
		attribute.String("item_id", item.ID().String()),
		attribute.String("status", item.Status().String()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_item", dbAttrs, func(ctx context.Context) error {
		var processedAt pgtype.Timestamptz
		if ts := item.ProcessedAt(); ts != nil {
			processedAt = pgtype.Timestamptz{Time: *ts, Valid: true}
		}

		tag, err := s.db.Exec(ctx, `
			UPDATE websites
			SET status = $2, error_message = $3, scraped_text = $4,
			    processed_at = $5, updated_at = now()
			WHERE id = $1`,
			pgtype.UUID{Bytes: item.ID(), Valid: true},
			item.Status().String(),
			pgtype.Text{String: item.ErrorMessage(), Valid: item.ErrorMessage() != ""},
			pgtype.Text{String: item.Content(), Valid: item.Content() != ""},
			processedAt,
		)
		if err != nil {
			return fmt.Errorf("UpdateItem exec error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classification.ErrNoItemUpdated
		}
		return nil
	})
}

// CountByStatus returns the per-status item totals for a batch.
func (s *itemStore) CountByStatus(ctx context.Context, batchID uuid.UUID) (classification.StatusCounts, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("batch_id", batchID.String()))

	var counts classification.StatusCounts
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.count_items_by_status", dbAttrs, func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, `
			SELECT status, COUNT(*)
			FROM websites
			WHERE batch_id = $1
			GROUP BY status`,
			pgtype.UUID{Bytes: batchID, Valid: true},
		)
		if err != nil {
			return fmt.Errorf("CountByStatus query error: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var status string
			var count int64
			if err := rows.Scan(&status, &count); err != nil {
				return fmt.Errorf("CountByStatus scan error: %w", err)
			}
			switch classification.ParseItemStatus(status) {
			case classification.ItemStatusPending:
				counts.Pending = int(count)
			case classification.ItemStatusProcessing:
				counts.Processing = int(count)
			case classification.ItemStatusCompleted:
				counts.Completed = int(count)
			case classification.ItemStatusFailed:
				counts.Failed = int(count)
			case classification.ItemStatusCancelled:
				counts.Cancelled = int(count)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return classification.StatusCounts{}, err
	}
	return counts, nil
}

// CancelActive marks all pending and processing items of a batch cancelled.
func (s *itemStore) CancelActive(ctx context.Context, batchID uuid.UUID, message string) (int64, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("batch_id", batchID.String()))

	var affected int64
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.cancel_active_items", dbAttrs, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE websites
			SET status = $2, error_message = $3, processed_at = now(), updated_at = now()
			WHERE batch_id = $1 AND status IN ($4, $5)`,
			pgtype.UUID{Bytes: batchID, Valid: true},
			classification.ItemStatusCancelled.String(),
			pgtype.Text{String: message, Valid: message != ""},
			classification.ItemStatusPending.String(),
			classification.ItemStatusProcessing.String(),
		)
		if err != nil {
			return fmt.Errorf("CancelActive exec error: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

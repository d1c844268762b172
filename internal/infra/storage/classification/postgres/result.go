package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
	"github.com/lenderlens/lenderlens/internal/infra/storage"
)

var _ classification.ResultRepository = (*resultStore)(nil)

// resultStore implements classification.ResultRepository. Results are
// append-only; redelivered work can insert a duplicate row for an item, and
// readers treat the latest row as authoritative.
type resultStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewResultStore creates a PostgreSQL-backed classification result repository.
func NewResultStore(pool *pgxpool.Pool, tracer trace.Tracer) *resultStore {
	return &resultStore{db: pool, tracer: tracer}
}

// CreateResult stores a new classification result.
func (s *resultStore) CreateResult(ctx context.Context, result *classification.Result) error {
	dbAttrs := append(defaultDBAttributes,
		attribute.String("result_id", result.ID().String()),
		attribute.String("item_id", result.ItemID().String()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.create_result", dbAttrs, func(ctx context.Context) error {
		verdict := result.Verdict()

		_, err := s.db.Exec(ctx, `
			INSERT INTO classification_results (
				id, website_id, batch_id, is_lender_broker, business_model,
				confidence, primary_services, evidence, exclusion_reason,
				raw_response, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			pgtype.UUID{Bytes: result.ID(), Valid: true},
			pgtype.UUID{Bytes: result.ItemID(), Valid: true},
			pgtype.UUID{Bytes: result.BatchID(), Valid: true},
			verdict.IsLenderBroker,
			verdict.BusinessModel,
			verdict.Confidence,
			verdict.PrimaryServices,
			verdict.Evidence,
			pgtype.Text{String: verdict.ExclusionReason, Valid: verdict.ExclusionReason != ""},
			[]byte(verdict.Raw),
			pgtype.Timestamptz{Time: result.CreatedAt(), Valid: true},
		)
		if err != nil {
			return fmt.Errorf("CreateResult insert error: %w", err)
		}
		return nil
	})
}

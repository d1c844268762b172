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

var _ classification.PromptRepository = (*promptStore)(nil)

// promptStore implements classification.PromptRepository. Prompt CRUD lives
// in the admin surface; the pipeline only reads.
type promptStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewPromptStore creates a PostgreSQL-backed prompt repository.
func NewPromptStore(pool *pgxpool.Pool, tracer trace.Tracer) *promptStore {
	return &promptStore{db: pool, tracer: tracer}
}

// GetPrompt retrieves a prompt by ID.
func (s *promptStore) GetPrompt(ctx context.Context, id uuid.UUID) (*classification.Prompt, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("prompt_id", id.String()))

	var prompt *classification.Prompt
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_prompt", dbAttrs, func(ctx context.Context) error {
		row := s.db.QueryRow(ctx, `
			SELECT id, name, system_prompt, model
			FROM prompts
			WHERE id = $1`,
			pgtype.UUID{Bytes: id, Valid: true},
		)

		var (
			promptID     pgtype.UUID
			name         string
			systemPrompt string
			model        pgtype.Text
		)
		if err := row.Scan(&promptID, &name, &systemPrompt, &model); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classification.ErrPromptNotFound
			}
			return fmt.Errorf("GetPrompt query error: %w", err)
		}

		prompt = classification.NewPrompt(uuid.UUID(promptID.Bytes), name, systemPrompt, model.String)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prompt, nil
}

// internal/infra/database/postgres_prompt_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"lecture_coordinator_bot/internal/domain/prompt"
)

// Custom errors specific to the prompt (correlation) repository
var ErrPromptNotFound = fmt.Errorf("outbound prompt not found")
var ErrDuplicatePrompt = fmt.Errorf("outbound prompt with this message id already recorded")

type PostgresPromptRepository struct {
	db *sql.DB
}

func NewPostgresPromptRepository(db *sql.DB) *PostgresPromptRepository {
	return &PostgresPromptRepository{db: db}
}

func (r *PostgresPromptRepository) Record(ctx context.Context, p *prompt.Prompt) error {
	query := `INSERT INTO lecture_prompts (wa_message_id, lecture_id, recipient, kind, decision_handled)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, p.MessageID, p.LectureID, p.Recipient, p.Kind, p.DecisionHandled).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePrompt
		}
		return fmt.Errorf("error recording outbound prompt: %w", err)
	}
	return nil
}

func (r *PostgresPromptRepository) GetByMessageID(ctx context.Context, messageID string) (*prompt.Prompt, error) {
	query := `SELECT id, wa_message_id, lecture_id, recipient, kind, decision_handled, created_at
               FROM lecture_prompts WHERE wa_message_id = $1`
	p := prompt.Prompt{}
	err := r.db.QueryRowContext(ctx, query, messageID).Scan(
		&p.ID, &p.MessageID, &p.LectureID, &p.Recipient, &p.Kind, &p.DecisionHandled, &p.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("error getting prompt by message id: %w", err)
	}
	return &p, nil
}

// MarkHandledIfUnhandled is the decision-handled compare-and-set: the WHERE
// clause makes the flip atomic, and the row count tells the caller whether
// it won.
func (r *PostgresPromptRepository) MarkHandledIfUnhandled(ctx context.Context, messageID string) (bool, error) {
	query := `UPDATE lecture_prompts
               SET decision_handled = TRUE
               WHERE wa_message_id = $1 AND decision_handled = FALSE`
	res, err := r.db.ExecContext(ctx, query, messageID)
	if err != nil {
		return false, fmt.Errorf("error marking prompt handled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected for prompt CAS: %w", err)
	}
	return affected == 1, nil
}

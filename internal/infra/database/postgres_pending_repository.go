// internal/infra/database/postgres_pending_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"lecture_coordinator_bot/internal/domain/pending"
)

var ErrPendingActionNotFound = fmt.Errorf("pending action not found")

type PostgresPendingTracker struct {
	db *sql.DB
}

func NewPostgresPendingTracker(db *sql.DB) *PostgresPendingTracker {
	return &PostgresPendingTracker{db: db}
}

const pendingColumns = `id, lecture_id, lecturer_whatsapp, action, status, active, wa_message_id, created_at, updated_at`

func scanPendingAction(row *sql.Row) (*pending.Action, error) {
	a := pending.Action{}
	err := row.Scan(&a.ID, &a.LectureID, &a.LecturerWhatsApp, &a.Kind, &a.Status, &a.Active, &a.PromptID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPendingActionNotFound
		}
		return nil, fmt.Errorf("error scanning pending action: %w", err)
	}
	return &a, nil
}

// Create upserts a non-focused entry keyed by the originating prompt id.
func (r *PostgresPendingTracker) Create(ctx context.Context, a *pending.Action) error {
	query := `INSERT INTO pending_actions (lecture_id, lecturer_whatsapp, action, status, active, wa_message_id)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT (wa_message_id) DO NOTHING
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, a.LectureID, a.LecturerWhatsApp, a.Kind, a.Status, a.Active, a.PromptID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil // placeholder already exists for this prompt
	}
	if err != nil {
		return fmt.Errorf("error creating pending action: %w", err)
	}
	return nil
}

// CreateFocused deactivates the lecturer's other pending entries and upserts
// this one as active+pending, in a single transaction. This preserves the
// invariant of at most one active entry per lecturer.
func (r *PostgresPendingTracker) CreateFocused(ctx context.Context, a *pending.Action) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for focused pending action: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	_, err = txn.ExecContext(ctx,
		`UPDATE pending_actions SET active = FALSE, updated_at = NOW()
          WHERE lecturer_whatsapp = $1 AND status = 'pending'`, a.LecturerWhatsApp)
	if err != nil {
		return fmt.Errorf("error deactivating prior pending actions: %w", err)
	}

	err = txn.QueryRowContext(ctx,
		`INSERT INTO pending_actions (lecture_id, lecturer_whatsapp, action, status, active, wa_message_id)
          VALUES ($1, $2, $3, 'pending', TRUE, $4)
          ON CONFLICT (wa_message_id) DO UPDATE
          SET lecture_id = EXCLUDED.lecture_id,
              lecturer_whatsapp = EXCLUDED.lecturer_whatsapp,
              action = EXCLUDED.action,
              status = 'pending',
              active = TRUE,
              updated_at = NOW()
          RETURNING id, created_at, updated_at`,
		a.LectureID, a.LecturerWhatsApp, a.Kind, a.PromptID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting focused pending action: %w", err)
	}

	a.Status = pending.StatusPending
	a.Active = true
	return txn.Commit()
}

// Resolve implements the three-tier resolution order: exact reply-context
// match, then the lecturer's active focus, then the most recent pending
// entry. First match wins.
func (r *PostgresPendingTracker) Resolve(ctx context.Context, actor, replyTo string) (*pending.Action, error) {
	if replyTo != "" {
		a, err := scanPendingAction(r.db.QueryRowContext(ctx,
			`SELECT `+pendingColumns+` FROM pending_actions
              WHERE wa_message_id = $1 AND status = 'pending'`, replyTo))
		if err == nil {
			return a, nil
		}
		if err != ErrPendingActionNotFound {
			return nil, err
		}
	}

	a, err := scanPendingAction(r.db.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_actions
          WHERE lecturer_whatsapp = $1 AND status = 'pending' AND active = TRUE
          ORDER BY updated_at DESC LIMIT 1`, actor))
	if err == nil {
		return a, nil
	}
	if err != ErrPendingActionNotFound {
		return nil, err
	}

	return scanPendingAction(r.db.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_actions
          WHERE lecturer_whatsapp = $1 AND status = 'pending'
          ORDER BY created_at DESC LIMIT 1`, actor))
}

func (r *PostgresPendingTracker) GetByPromptID(ctx context.Context, promptID string) (*pending.Action, error) {
	return scanPendingAction(r.db.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_actions WHERE wa_message_id = $1`, promptID))
}

func (r *PostgresPendingTracker) HasPending(ctx context.Context, actor string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_actions WHERE lecturer_whatsapp = $1 AND status = 'pending'`, actor).
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error counting pending actions: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresPendingTracker) Narrow(ctx context.Context, id int64, kind pending.ActionKind) error {
	return r.exec(ctx, `UPDATE pending_actions SET action = $1, updated_at = NOW() WHERE id = $2`, kind, id)
}

func (r *PostgresPendingTracker) Close(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE pending_actions SET status = 'closed', active = FALSE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresPendingTracker) Deactivate(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE pending_actions SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresPendingTracker) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating pending action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for pending action update: %w", err)
	}
	if affected == 0 {
		return ErrPendingActionNotFound
	}
	return nil
}

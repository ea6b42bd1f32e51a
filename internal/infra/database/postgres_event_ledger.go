// internal/infra/database/postgres_event_ledger.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"lecture_coordinator_bot/internal/domain/event"
)

// ErrDuplicateEvent is the idempotency signal: the inbound event id has
// already been recorded. Callers absorb it silently — the transport already
// delivered successfully and must not see an error.
var ErrDuplicateEvent = fmt.Errorf("inbound event already processed")

type PostgresEventLedger struct {
	db *sql.DB
}

func NewPostgresEventLedger(db *sql.DB) *PostgresEventLedger {
	return &PostgresEventLedger{db: db}
}

// Record inserts the processed-event row. The unique constraint on
// wa_message_id makes this the single atomic idempotency gate.
func (r *PostgresEventLedger) Record(ctx context.Context, p *event.Processed) error {
	query := `INSERT INTO processed_inbound_events (wa_message_id, lecture_id, sender, kind)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, p.EventID, p.LectureID, p.Sender, p.Kind).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("error recording processed inbound event: %w", err)
	}
	return nil
}

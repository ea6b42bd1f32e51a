// internal/app/helpers.go
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/event"
	domainWhatsApp "lecture_coordinator_bot/internal/domain/whatsapp"
	idb "lecture_coordinator_bot/internal/infra/database"
)

// recordInbound runs the idempotency gate for an inbound event. A duplicate
// is reported via the boolean and is never an error: the transport already
// delivered successfully.
func recordInbound(ctx context.Context, ledger event.Ledger, logger *logrus.Logger, ev *event.Inbound, lectureID int64) (duplicate bool, err error) {
	err = ledger.Record(ctx, &event.Processed{
		EventID:   ev.ID,
		LectureID: sql.NullInt64{Int64: lectureID, Valid: lectureID != 0},
		Sender:    domainWhatsApp.ToLocal(ev.From),
		Kind:      string(ev.Kind),
	})
	if err == idb.ErrDuplicateEvent {
		logger.WithField("event_id", ev.ID).Debug("Duplicate inbound event absorbed.")
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record inbound event: %w", err)
	}
	return false, nil
}

// sendInfo delivers a best-effort informational reply; failures are logged,
// never propagated.
func sendInfo(ctx context.Context, client domainWhatsApp.Client, logger *logrus.Logger, to, body string) {
	if _, err := client.SendText(ctx, to, body); err != nil {
		logger.WithField("recipient", to).Warn("Failed to send informational reply: ", err)
	}
}

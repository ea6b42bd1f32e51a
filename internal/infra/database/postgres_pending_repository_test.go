// internal/infra/database/postgres_pending_repository_test.go
package database

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture_coordinator_bot/internal/domain/pending"
)

func newPendingTrackerMock(t *testing.T) (*PostgresPendingTracker, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresPendingTracker(db), mock, func() { db.Close() }
}

func pendingRow(id int64, promptID string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "lecture_id", "lecturer_whatsapp", "action", "status", "active", "wa_message_id", "created_at", "updated_at",
	}).AddRow(id, int64(1), "08030000001", "add_note", "pending", active, promptID, now, now)
}

func emptyPendingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "lecture_id", "lecturer_whatsapp", "action", "status", "active", "wa_message_id", "created_at", "updated_at",
	})
}

func TestPendingTrackerResolvePrefersReplyContext(t *testing.T) {
	tracker, mock, cleanup := newPendingTrackerMock(t)
	defer cleanup()

	mock.ExpectQuery(`FROM pending_actions\s+WHERE wa_message_id`).
		WithArgs("wamid.prompt").
		WillReturnRows(pendingRow(5, "wamid.prompt", false))

	a, err := tracker.Resolve(context.Background(), "08030000001", "wamid.prompt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.ID)
	assert.Equal(t, pending.ActionAddNote, a.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingTrackerResolveFallsBackToFocusThenRecency(t *testing.T) {
	tracker, mock, cleanup := newPendingTrackerMock(t)
	defer cleanup()

	// No reply context: the first query is the active-focus lookup, and when
	// that misses, the most-recent lookup runs.
	mock.ExpectQuery(`status = 'pending' AND active = TRUE\s+ORDER BY updated_at DESC`).
		WithArgs("08030000001").
		WillReturnRows(emptyPendingRows())
	mock.ExpectQuery(`status = 'pending'\s+ORDER BY created_at DESC`).
		WithArgs("08030000001").
		WillReturnRows(pendingRow(8, "wamid.older", false))

	a, err := tracker.Resolve(context.Background(), "08030000001", "")
	require.NoError(t, err)
	assert.Equal(t, int64(8), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingTrackerResolveNotFound(t *testing.T) {
	tracker, mock, cleanup := newPendingTrackerMock(t)
	defer cleanup()

	mock.ExpectQuery(`active = TRUE`).WillReturnRows(emptyPendingRows())
	mock.ExpectQuery(`ORDER BY created_at DESC`).WillReturnRows(emptyPendingRows())

	_, err := tracker.Resolve(context.Background(), "08030000001", "")
	assert.ErrorIs(t, err, ErrPendingActionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingTrackerCreateFocusedDeactivatesOthersInTx(t *testing.T) {
	tracker, mock, cleanup := newPendingTrackerMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE pending_actions SET active = FALSE`).
		WithArgs("08030000001").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO pending_actions`).
		WithArgs(int64(1), "08030000001", pending.ActionAwaitingChoice, "wamid.followup").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(12), now, now))
	mock.ExpectCommit()

	a := &pending.Action{
		LectureID:        1,
		LecturerWhatsApp: "08030000001",
		Kind:             pending.ActionAwaitingChoice,
		PromptID:         "wamid.followup",
	}
	require.NoError(t, tracker.CreateFocused(context.Background(), a))
	assert.Equal(t, int64(12), a.ID)
	assert.Equal(t, pending.StatusPending, a.Status)
	assert.True(t, a.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingTrackerCloseMissingRow(t *testing.T) {
	tracker, mock, cleanup := newPendingTrackerMock(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE pending_actions SET status = 'closed'`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := tracker.Close(context.Background(), 99)
	assert.ErrorIs(t, err, ErrPendingActionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

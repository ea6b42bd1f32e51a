// internal/infra/database/postgres_prompt_repository_test.go
package database

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture_coordinator_bot/internal/domain/prompt"
)

func newPromptRepoMock(t *testing.T) (*PostgresPromptRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresPromptRepository(db), mock, func() { db.Close() }
}

func TestPromptRepositoryRecord(t *testing.T) {
	repo, mock, cleanup := newPromptRepoMock(t)
	defer cleanup()

	p := &prompt.Prompt{
		MessageID: "wamid.prompt",
		LectureID: 3,
		Recipient: "08030000001",
		Kind:      prompt.KindNotification,
	}
	mock.ExpectQuery("INSERT INTO lecture_prompts").
		WithArgs("wamid.prompt", int64(3), "08030000001", prompt.KindNotification, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), time.Now()))

	require.NoError(t, repo.Record(context.Background(), p))
	assert.Equal(t, int64(9), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromptRepositoryRecordDuplicate(t *testing.T) {
	repo, mock, cleanup := newPromptRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO lecture_prompts").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Record(context.Background(), &prompt.Prompt{MessageID: "wamid.prompt"})
	assert.ErrorIs(t, err, ErrDuplicatePrompt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromptRepositoryGetByMessageIDNotFound(t *testing.T) {
	repo, mock, cleanup := newPromptRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM lecture_prompts WHERE wa_message_id").
		WithArgs("wamid.missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "wa_message_id", "lecture_id", "recipient", "kind", "decision_handled", "created_at"}))

	_, err := repo.GetByMessageID(context.Background(), "wamid.missing")
	assert.ErrorIs(t, err, ErrPromptNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromptRepositoryMarkHandledCAS(t *testing.T) {
	repo, mock, cleanup := newPromptRepoMock(t)
	defer cleanup()

	// First flip wins.
	mock.ExpectExec("UPDATE lecture_prompts").
		WithArgs("wamid.prompt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	won, err := repo.MarkHandledIfUnhandled(context.Background(), "wamid.prompt")
	require.NoError(t, err)
	assert.True(t, won)

	// A second attempt matches no unhandled row.
	mock.ExpectExec("UPDATE lecture_prompts").
		WithArgs("wamid.prompt").
		WillReturnResult(sqlmock.NewResult(0, 0))
	won, err = repo.MarkHandledIfUnhandled(context.Background(), "wamid.prompt")
	require.NoError(t, err)
	assert.False(t, won)

	assert.NoError(t, mock.ExpectationsWereMet())
}

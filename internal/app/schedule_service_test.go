// internal/app/schedule_service_test.go
package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture_coordinator_bot/internal/domain/lecture"
)

type scheduleEnv struct {
	lectures *stubLectureRepo
	roster   *stubRosterRepo
	ledger   *stubLedger
	client   *stubClient
	svc      *ScheduleServiceImpl
}

func newScheduleEnv(t *testing.T, lectures ...*lecture.Lecture) *scheduleEnv {
	t.Helper()
	loc := lagos(t)
	env := &scheduleEnv{
		lectures: newStubLectureRepo(lectures...),
		roster:   newStubRosterRepo(),
		ledger:   newStubLedger(),
		client:   newStubClient(),
	}
	log := quietLogger()
	notifier := NewNotifierImpl(env.roster, env.client, log, loc)
	env.svc = NewScheduleServiceImpl(env.lectures, env.roster, env.ledger, notifier, env.client, log, loc)
	return env
}

func TestIsScheduleKeyword(t *testing.T) {
	svc := newScheduleEnv(t).svc
	assert.True(t, svc.IsScheduleKeyword("schedule"))
	assert.True(t, svc.IsScheduleKeyword(" Schedule "))
	assert.False(t, svc.IsScheduleKeyword("my schedule"))
}

func TestHandleKeywordSummary_UnenrolledUserIsToldToJoin(t *testing.T) {
	env := newScheduleEnv(t)

	require.NoError(t, env.svc.HandleKeywordSummary(context.Background(),
		textEvent("ev1", bobWaID, "schedule", ""), nil))

	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "not enrolled")
}

func TestHandleKeywordSummary_UnenrolledReplyNotRepeatedForDuplicateEvent(t *testing.T) {
	env := newScheduleEnv(t)

	// The same webhook event delivered twice must produce one reply, even
	// on the not-enrolled path.
	ev := textEvent("ev-dup", bobWaID, "schedule", "")
	require.NoError(t, env.svc.HandleKeywordSummary(context.Background(), ev, nil))
	require.NoError(t, env.svc.HandleKeywordSummary(context.Background(), ev, nil))

	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "not enrolled")
}

func TestHandleKeywordSummary_SendsTodaysClasses(t *testing.T) {
	lec := makeLecture(1, 10)
	lec.StartTime = todayAt(t, 10)
	lec.EndTime = todayAt(t, 12)
	env := newScheduleEnv(t, lec)
	student := studentUser(bobLocal, 10)
	env.roster.addUser(student)

	require.NoError(t, env.svc.HandleKeywordSummary(context.Background(),
		textEvent("ev1", bobWaID, "schedule", ""), student))

	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "today")
	assert.Contains(t, msgs[0].Body, "Systems Programming")
}

func TestHandleViewSchedule_EveningShowsTomorrow(t *testing.T) {
	tomorrow := todayAt(t, 9).AddDate(0, 0, 1)
	lec := makeLecture(1, 10)
	lec.StartTime = tomorrow
	lec.EndTime = tomorrow.Add(2 * time.Hour)
	env := newScheduleEnv(t, lec)
	env.svc.now = func() time.Time { return todayAt(t, 19) }
	student := studentUser(bobLocal, 10)
	env.roster.addUser(student)

	claimed, err := env.svc.HandleViewSchedule(context.Background(),
		buttonEvent("ev1", bobWaID, buttonViewSchedule, ""), student)
	require.NoError(t, err)
	assert.True(t, claimed)

	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "tomorrow")
	assert.Contains(t, msgs[0].Body, "Systems Programming")
}

func TestHandleViewSchedule_OtherButtonsNotClaimed(t *testing.T) {
	env := newScheduleEnv(t)
	student := studentUser(bobLocal, 10)
	env.roster.addUser(student)

	claimed, err := env.svc.HandleViewSchedule(context.Background(),
		buttonEvent("ev1", bobWaID, buttonConfirmYes, ""), student)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, env.client.textsTo(bobLocal))
}

func TestSendDailySummaries_OnlyClassesWithLecturesAreMessaged(t *testing.T) {
	lec := makeLecture(1, 10)
	lec.StartTime = todayAt(t, 10)
	lec.EndTime = todayAt(t, 12)
	env := newScheduleEnv(t, lec)
	env.roster.addUser(studentUser("08110000001", 10))
	env.roster.addUser(studentUser("08110000002", 10))
	env.roster.addUser(studentUser("08110000003", 20)) // no lectures today

	require.NoError(t, env.svc.SendDailySummaries(context.Background()))

	assert.Len(t, env.client.textsTo("08110000001"), 1)
	assert.Len(t, env.client.textsTo("08110000002"), 1)
	assert.Empty(t, env.client.textsTo("08110000003"))
}

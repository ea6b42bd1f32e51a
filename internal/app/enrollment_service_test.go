// internal/app/enrollment_service_test.go
package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture_coordinator_bot/internal/domain/roster"
)

type enrollEnv struct {
	roster *stubRosterRepo
	ledger *stubLedger
	client *stubClient
	svc    *EnrollmentServiceImpl
}

func newEnrollEnv(t *testing.T) *enrollEnv {
	t.Helper()
	env := &enrollEnv{
		roster: newStubRosterRepo(),
		ledger: newStubLedger(),
		client: newStubClient(),
	}
	env.svc = NewEnrollmentServiceImpl(env.roster, env.ledger, env.client, quietLogger())
	return env
}

func TestIsJoinCommand(t *testing.T) {
	svc := newEnrollEnv(t).svc
	assert.True(t, svc.IsJoinCommand("join_42"))
	assert.True(t, svc.IsJoinCommand("  JOIN_7  "))
	assert.False(t, svc.IsJoinCommand("join_"))
	assert.False(t, svc.IsJoinCommand("join_42 please"))
	assert.False(t, svc.IsJoinCommand("schedule"))
}

func TestHandleJoin_NewUserStartsOnboarding(t *testing.T) {
	env := newEnrollEnv(t)
	env.roster.classes[42] = &roster.Class{ID: 42, Title: "CSC 400"}

	err := env.svc.HandleJoin(context.Background(), textEvent("ev1", bobWaID, "join_42", ""), nil)
	require.NoError(t, err)

	created := env.roster.usersByPhone[bobLocal]
	require.NotNil(t, created)
	assert.Equal(t, roster.StepFullName, created.OnboardingStep)
	assert.Equal(t, roster.RoleStudent, created.Role)
	require.True(t, created.ClassID.Valid)
	assert.Equal(t, int64(42), created.ClassID.Int64)

	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "CSC 400")
	assert.Contains(t, msgs[0].Body, "full name")
}

func TestHandleJoin_UnknownClassLinkIsRejectedGently(t *testing.T) {
	env := newEnrollEnv(t)

	err := env.svc.HandleJoin(context.Background(), textEvent("ev1", bobWaID, "join_99", ""), nil)
	require.NoError(t, err)

	assert.Nil(t, env.roster.usersByPhone[bobLocal])
	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "doesn't match any class")
}

func TestHandleJoin_AlreadyEnrolledIsAcknowledged(t *testing.T) {
	env := newEnrollEnv(t)
	env.roster.classes[42] = &roster.Class{ID: 42, Title: "CSC 400"}
	existing := studentUser(bobLocal, 42)
	env.roster.addUser(existing)

	err := env.svc.HandleJoin(context.Background(), textEvent("ev1", bobWaID, "join_42", ""), existing)
	require.NoError(t, err)

	// Still fully enrolled, not bounced back into onboarding.
	assert.Equal(t, roster.StepComplete, env.roster.usersByPhone[bobLocal].OnboardingStep)
	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "already enrolled")
}

func TestHandleOnboarding_TwoStepFlow(t *testing.T) {
	env := newEnrollEnv(t)
	env.roster.classes[42] = &roster.Class{ID: 42, Title: "CSC 400"}
	joining := studentUser(bobLocal, 42)
	joining.FullName = ""
	joining.OnboardingStep = roster.StepFullName
	env.roster.addUser(joining)

	require.NoError(t, env.svc.HandleOnboarding(context.Background(),
		textEvent("ev1", bobWaID, "Bob Okafor", ""), joining))

	assert.Equal(t, "Bob Okafor", joining.FullName)
	assert.Equal(t, roster.StepRegNumber, joining.OnboardingStep)
	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "Bob")
	assert.Contains(t, msgs[0].Body, "registration number")

	require.NoError(t, env.svc.HandleOnboarding(context.Background(),
		textEvent("ev2", bobWaID, "ENG/2022/115", ""), joining))

	assert.Equal(t, roster.StepComplete, joining.OnboardingStep)
	require.True(t, joining.RegNumber.Valid)
	assert.Equal(t, "ENG/2022/115", joining.RegNumber.String)
	msgs = env.client.textsTo(bobLocal)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Body, "CSC 400")
}

func TestHandleOnboarding_EmptyAnswerIsReprompted(t *testing.T) {
	env := newEnrollEnv(t)
	joining := studentUser(bobLocal, 42)
	joining.OnboardingStep = roster.StepFullName
	env.roster.addUser(joining)

	require.NoError(t, env.svc.HandleOnboarding(context.Background(),
		textEvent("ev1", bobWaID, "   ", ""), joining))

	assert.Equal(t, roster.StepFullName, joining.OnboardingStep)
	msgs := env.client.textsTo(bobLocal)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "full name")
}

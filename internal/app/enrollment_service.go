// internal/app/enrollment_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/event"
	"lecture_coordinator_bot/internal/domain/roster"
	domainWhatsApp "lecture_coordinator_bot/internal/domain/whatsapp"
	idb "lecture_coordinator_bot/internal/infra/database"
)

var joinPattern = regexp.MustCompile(`(?i)^join_(\d+)$`)

// EnrollmentService runs the deep-link join flow and the two-step onboarding
// conversation (full name, then registration number).
type EnrollmentService interface {
	// IsJoinCommand reports whether the text is a join deep link.
	IsJoinCommand(text string) bool

	HandleJoin(ctx context.Context, ev *event.Inbound, user *roster.User) error
	HandleOnboarding(ctx context.Context, ev *event.Inbound, user *roster.User) error
}

type EnrollmentServiceImpl struct {
	rosterRepo roster.Repository
	ledger     event.Ledger
	client     domainWhatsApp.Client
	logger     *logrus.Logger
}

func NewEnrollmentServiceImpl(
	rr roster.Repository,
	ledger event.Ledger,
	client domainWhatsApp.Client,
	logger *logrus.Logger,
) *EnrollmentServiceImpl {
	return &EnrollmentServiceImpl{
		rosterRepo: rr,
		ledger:     ledger,
		client:     client,
		logger:     logger,
	}
}

func (s *EnrollmentServiceImpl) IsJoinCommand(text string) bool {
	return joinPattern.MatchString(strings.TrimSpace(text))
}

func (s *EnrollmentServiceImpl) HandleJoin(ctx context.Context, ev *event.Inbound, user *roster.User) error {
	phone := domainWhatsApp.ToLocal(ev.From)
	match := joinPattern.FindStringSubmatch(strings.TrimSpace(ev.Text))
	if match == nil {
		return fmt.Errorf("join handler received a non-join message %q", ev.Text)
	}
	classID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid class id in join link %q: %w", ev.Text, err)
	}

	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, 0); err != nil {
		return err
	} else if dup {
		return nil
	}

	class, err := s.rosterRepo.GetClassByID(ctx, classID)
	if err != nil {
		if err == idb.ErrClassNotFound {
			sendInfo(ctx, s.client, s.logger, phone, "That join link doesn't match any class. Please check with your class rep.")
			return nil
		}
		return fmt.Errorf("failed to load class %d: %w", classID, err)
	}

	if user != nil && user.OnboardingStep == roster.StepComplete && user.ClassID.Valid && user.ClassID.Int64 == classID {
		sendInfo(ctx, s.client, s.logger, phone, fmt.Sprintf("You're already enrolled in %s.", class.Title))
		return nil
	}

	if user == nil {
		user = &roster.User{
			WhatsAppNumber: phone,
			Role:           roster.RoleStudent,
			ClassID:        sql.NullInt64{Int64: classID, Valid: true},
			OnboardingStep: roster.StepFullName,
		}
		if err := s.rosterRepo.CreateUser(ctx, user); err != nil && err != idb.ErrDuplicateWhatsAppNumber {
			return fmt.Errorf("failed to create joining user: %w", err)
		}
	} else {
		user.ClassID = sql.NullInt64{Int64: classID, Valid: true}
		user.OnboardingStep = roster.StepFullName
		if err := s.rosterRepo.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to update joining user: %w", err)
		}
	}

	sendInfo(ctx, s.client, s.logger, phone, fmt.Sprintf(
		"Welcome to %s! 🎓\n\nLet's get you enrolled. What's your full name?", class.Title))
	return nil
}

func (s *EnrollmentServiceImpl) HandleOnboarding(ctx context.Context, ev *event.Inbound, user *roster.User) error {
	if user == nil {
		return fmt.Errorf("onboarding handler received event %s without a user", ev.ID)
	}
	phone := user.WhatsAppNumber
	answer := strings.TrimSpace(ev.Text)

	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, 0); err != nil {
		return err
	} else if dup {
		return nil
	}

	switch user.OnboardingStep {
	case roster.StepFullName:
		if answer == "" {
			sendInfo(ctx, s.client, s.logger, phone, "Please send your full name as text.")
			return nil
		}
		user.FullName = answer
		user.OnboardingStep = roster.StepRegNumber
		if err := s.rosterRepo.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to save onboarding name: %w", err)
		}
		sendInfo(ctx, s.client, s.logger, phone, fmt.Sprintf(
			"Thanks %s! Now, what's your registration number?", user.FirstName()))
		return nil

	case roster.StepRegNumber:
		if answer == "" {
			sendInfo(ctx, s.client, s.logger, phone, "Please send your registration number as text.")
			return nil
		}
		user.RegNumber = sql.NullString{String: answer, Valid: true}
		user.OnboardingStep = roster.StepComplete
		if err := s.rosterRepo.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to save onboarding reg number: %w", err)
		}

		welcome := "You're all set! 🎉 You'll get class updates here. Send \"schedule\" anytime to see your classes."
		if user.ClassID.Valid {
			if class, err := s.rosterRepo.GetClassByID(ctx, user.ClassID.Int64); err == nil {
				welcome = fmt.Sprintf(
					"You're all set, %s! 🎉 You'll get %s updates here. Send \"schedule\" anytime to see your classes.",
					user.FirstName(), class.Title)
			}
		}
		sendInfo(ctx, s.client, s.logger, phone, welcome)
		return nil

	default:
		return fmt.Errorf("onboarding handler invoked for completed user %d", user.ID)
	}
}

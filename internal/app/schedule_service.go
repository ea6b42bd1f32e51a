// internal/app/schedule_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/event"
	"lecture_coordinator_bot/internal/domain/lecture"
	"lecture_coordinator_bot/internal/domain/roster"
	domainWhatsApp "lecture_coordinator_bot/internal/domain/whatsapp"
)

// scheduleKeyword triggers the on-demand summary; matched exactly
// (case-insensitive) so ordinary conversation never trips it.
const scheduleKeyword = "schedule"

// eveningCutoverHour is the local hour after which "view schedule" shows
// tomorrow instead of today.
const eveningCutoverHour = 18

// ScheduleService answers student schedule requests and runs the cron-driven
// summary broadcasts.
type ScheduleService interface {
	// IsScheduleKeyword reports whether the text is the schedule request
	// keyword. Used by dispatch before claiming the event.
	IsScheduleKeyword(text string) bool

	// HandleKeywordSummary answers a "schedule" text from an enrolled user.
	HandleKeywordSummary(ctx context.Context, ev *event.Inbound, user *roster.User) error

	// HandleViewSchedule answers the view-schedule button. The boolean
	// reports whether the button was ours.
	HandleViewSchedule(ctx context.Context, ev *event.Inbound, user *roster.User) (bool, error)

	// SendDailySummaries is the morning cron job: today's schedule to every
	// enrolled student.
	SendDailySummaries(ctx context.Context) error

	// SendEveningReminders is the evening cron job: tomorrow's schedule.
	SendEveningReminders(ctx context.Context) error
}

type ScheduleServiceImpl struct {
	lectureRepo lecture.Repository
	rosterRepo  roster.Repository
	ledger      event.Ledger
	notifier    Notifier
	client      domainWhatsApp.Client
	logger      *logrus.Logger
	location    *time.Location
	now         func() time.Time
}

func NewScheduleServiceImpl(
	lr lecture.Repository,
	rr roster.Repository,
	ledger event.Ledger,
	notifier Notifier,
	client domainWhatsApp.Client,
	logger *logrus.Logger,
	location *time.Location,
) *ScheduleServiceImpl {
	return &ScheduleServiceImpl{
		lectureRepo: lr,
		rosterRepo:  rr,
		ledger:      ledger,
		notifier:    notifier,
		client:      client,
		logger:      logger,
		location:    location,
		now:         time.Now,
	}
}

func (s *ScheduleServiceImpl) IsScheduleKeyword(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), scheduleKeyword)
}

func (s *ScheduleServiceImpl) HandleKeywordSummary(ctx context.Context, ev *event.Inbound, user *roster.User) error {
	// Ledger first: even the "not enrolled" reply must not repeat on a
	// redelivered event.
	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, 0); err != nil {
		return err
	} else if dup {
		return nil
	}

	if user == nil || !user.ClassID.Valid {
		sendInfo(ctx, s.client, s.logger, domainWhatsApp.ToLocal(ev.From),
			"You're not enrolled in a class yet. Ask your class rep for the join link.")
		return nil
	}

	return s.sendDaySchedule(ctx, user, s.today(), "today")
}

func (s *ScheduleServiceImpl) HandleViewSchedule(ctx context.Context, ev *event.Inbound, user *roster.User) (bool, error) {
	if ev.ButtonID != buttonViewSchedule && !strings.EqualFold(ev.ButtonReply(), "View Schedule") {
		return false, nil
	}
	if user == nil || !user.ClassID.Valid {
		return false, nil
	}

	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, 0); err != nil {
		return true, err
	} else if dup {
		return true, nil
	}

	// In the evening, the interesting schedule is tomorrow's.
	day, label := s.today(), "today"
	if s.now().In(s.location).Hour() >= eveningCutoverHour {
		day, label = day.AddDate(0, 0, 1), "tomorrow"
	}
	return true, s.sendDaySchedule(ctx, user, day, label)
}

func (s *ScheduleServiceImpl) SendDailySummaries(ctx context.Context) error {
	return s.broadcastDay(ctx, s.today(), "today")
}

func (s *ScheduleServiceImpl) SendEveningReminders(ctx context.Context) error {
	return s.broadcastDay(ctx, s.today().AddDate(0, 0, 1), "tomorrow")
}

// broadcastDay sends the day's schedule to every enrolled student whose
// class has at least one lecture that day.
func (s *ScheduleServiceImpl) broadcastDay(ctx context.Context, day time.Time, label string) error {
	users, err := s.rosterRepo.ListUsersWithClass(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enrolled users: %w", err)
	}

	from, to := dayBounds(day)
	schedules := make(map[int64]string)
	for _, u := range users {
		classID := u.ClassID.Int64
		body, ok := schedules[classID]
		if !ok {
			lectures, err := s.lectureRepo.ListByClassBetween(ctx, classID, from, to)
			if err != nil {
				s.logger.WithField("class_id", classID).Warn("Failed to load class schedule: ", err)
				schedules[classID] = ""
				continue
			}
			if len(lectures) == 0 {
				schedules[classID] = ""
				continue
			}
			body = buildScheduleText(lectures, label, s.location)
			schedules[classID] = body
		}
		if body == "" {
			continue
		}
		if err := s.notifier.SmartSend(ctx, u, body); err != nil {
			s.logger.WithField("recipient", u.WhatsAppNumber).Warn("Failed to deliver schedule summary: ", err)
		}
	}
	return nil
}

func (s *ScheduleServiceImpl) sendDaySchedule(ctx context.Context, user *roster.User, day time.Time, label string) error {
	from, to := dayBounds(day)
	lectures, err := s.lectureRepo.ListByClassBetween(ctx, user.ClassID.Int64, from, to)
	if err != nil {
		return fmt.Errorf("failed to load class schedule: %w", err)
	}
	return s.notifier.SmartSend(ctx, user, buildScheduleText(lectures, label, s.location))
}

func (s *ScheduleServiceImpl) today() time.Time {
	now := s.now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}

func dayBounds(day time.Time) (from, to time.Time) {
	return day, day.AddDate(0, 0, 1).Add(-time.Second)
}

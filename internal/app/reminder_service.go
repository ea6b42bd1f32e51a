// internal/app/reminder_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/lecture"
	"lecture_coordinator_bot/internal/domain/prompt"
	"lecture_coordinator_bot/internal/domain/roster"
	domainWhatsApp "lecture_coordinator_bot/internal/domain/whatsapp"
)

// Business errors surfaced by the reminder/announcement flows.
var (
	ErrAlreadyAnnounced    = fmt.Errorf("class start has already been announced")
	ErrLectureNotToday     = fmt.Errorf("lecture does not start today")
	ErrLectureLocked       = fmt.Errorf("lecture decision is already locked")
	ErrNoReminderDelivered = fmt.Errorf("no reminder could be delivered to any lecturer")
)

// ReminderService covers the time-driven lecture flows: per-lecturer
// reminders, the one-shot ongoing announcement and the next-day
// notification run the scheduler calls.
type ReminderService interface {
	// SendReminder nudges the lecture's still-pending lecturers on the day
	// of the class. mode "session" attempts a free-form message first and
	// falls back to a template; any other mode goes straight to a template.
	SendReminder(ctx context.Context, lectureID int64, mode string) error

	// AnnounceOngoing broadcasts "class has started" to the students.
	// First caller wins; everyone else gets ErrAlreadyAnnounced.
	AnnounceOngoing(ctx context.Context, lectureID int64) error

	// NotifyTomorrowsLectures sends the initial Yes/No/Reschedule decision
	// prompt to every lecturer of tomorrow's lectures. Idempotent per day:
	// lecturers who already responded, and locked lectures, are skipped.
	NotifyTomorrowsLectures(ctx context.Context) error
}

type ReminderServiceImpl struct {
	lectureRepo lecture.Repository
	rosterRepo  roster.Repository
	promptRepo  prompt.Repository
	notifier    Notifier
	client      domainWhatsApp.Client
	logger      *logrus.Logger
	location    *time.Location
	now         func() time.Time
}

func NewReminderServiceImpl(
	lr lecture.Repository,
	rr roster.Repository,
	pr prompt.Repository,
	notifier Notifier,
	client domainWhatsApp.Client,
	logger *logrus.Logger,
	location *time.Location,
) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		lectureRepo: lr,
		rosterRepo:  rr,
		promptRepo:  pr,
		notifier:    notifier,
		client:      client,
		logger:      logger,
		location:    location,
		now:         time.Now,
	}
}

func (s *ReminderServiceImpl) SendReminder(ctx context.Context, lectureID int64, mode string) error {
	lec, err := s.lectureRepo.GetByID(ctx, lectureID)
	if err != nil {
		return fmt.Errorf("failed to load lecture %d: %w", lectureID, err)
	}
	now := s.now().In(s.location)
	if !lec.StartsOn(now) {
		return ErrLectureNotToday
	}
	if lec.Locked {
		return ErrLectureLocked
	}

	delivered := 0
	deliveredVia := ""
	for i := range lec.Lecturers {
		entry := &lec.Lecturers[i]
		if entry.ReminderSent || entry.Response != lecture.ResponsePending {
			continue
		}
		via, err := s.remindLecturer(ctx, lec, entry, mode)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"lecture_id": lec.ID,
				"lecturer":   entry.WhatsApp,
			}).Warn("Failed to deliver reminder: ", err)
			continue
		}
		if err := s.lectureRepo.MarkLecturerReminded(ctx, lec.ID, entry.WhatsApp); err != nil {
			s.logger.WithField("lecture_id", lec.ID).Warn("Failed to flag lecturer reminder: ", err)
		}
		delivered++
		deliveredVia = via
	}

	if delivered == 0 {
		return ErrNoReminderDelivered
	}
	if err := s.lectureRepo.SetReminderRecord(ctx, lec.ID, deliveredVia); err != nil {
		s.logger.WithField("lecture_id", lec.ID).Warn("Failed to record reminder delivery: ", err)
	}
	return nil
}

// remindLecturer tries a free-form session message first when asked to, and
// falls back to the template channel. It reports which channel delivered.
func (s *ReminderServiceImpl) remindLecturer(ctx context.Context, lec *lecture.Lecture, entry *lecture.Lecturer, mode string) (string, error) {
	body := fmt.Sprintf(
		"⏰ Reminder: %s holds today, %s at %s. Is the class holding?",
		lec.Course, formatDate(lec.StartTime, s.location), formatTimeRange(lec.StartTime, lec.EndTime, s.location))

	if mode == "session" {
		msgID, err := s.client.SendText(ctx, entry.WhatsApp, body,
			domainWhatsApp.Button{ID: buttonConfirmYes, Title: "Yes"},
			domainWhatsApp.Button{ID: buttonConfirmNo, Title: "No"},
			domainWhatsApp.Button{ID: buttonConfirmReschedule, Title: "Reschedule"},
		)
		if err == nil {
			return "session", s.recordDecisionPrompt(ctx, lec.ID, entry.WhatsApp, msgID)
		}
		s.logger.WithField("lecturer", entry.WhatsApp).Debug("Session reminder failed, falling back to template: ", err)
	}

	msgID, err := s.client.SendTemplate(ctx, entry.WhatsApp, templateLectureReminder, []string{
		entry.Name,
		lec.Course,
		formatTimeRange(lec.StartTime, lec.EndTime, s.location),
	})
	if err != nil {
		return "", err
	}
	return "template", s.recordDecisionPrompt(ctx, lec.ID, entry.WhatsApp, msgID)
}

func (s *ReminderServiceImpl) AnnounceOngoing(ctx context.Context, lectureID int64) error {
	lec, err := s.lectureRepo.GetByID(ctx, lectureID)
	if err != nil {
		return fmt.Errorf("failed to load lecture %d: %w", lectureID, err)
	}
	if !lec.StartsOn(s.now().In(s.location)) {
		return ErrLectureNotToday
	}

	won, err := s.lectureRepo.MarkAnnouncedIfUnannounced(ctx, lectureID)
	if err != nil {
		return fmt.Errorf("failed announcement compare-and-set: %w", err)
	}
	if !won {
		return ErrAlreadyAnnounced
	}

	lec.Status = lecture.StatusOngoing
	return s.notifier.NotifyClass(ctx, lec, ongoingBody(lec, s.location))
}

func (s *ReminderServiceImpl) NotifyTomorrowsLectures(ctx context.Context) error {
	now := s.now().In(s.location)
	from := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.location)
	to := from.AddDate(0, 0, 1).Add(-time.Second)

	lectures, err := s.lectureRepo.ListStartingBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to list tomorrow's lectures: %w", err)
	}

	for _, lec := range lectures {
		if lec.Locked || lec.Status == lecture.StatusCancelled {
			continue
		}
		class, err := s.rosterRepo.GetClassByID(ctx, lec.ClassID)
		if err != nil {
			s.logger.WithField("lecture_id", lec.ID).Warn("Failed to load class for notification run: ", err)
			continue
		}
		if !class.NotifyLecturers {
			continue
		}

		for i := range lec.Lecturers {
			entry := &lec.Lecturers[i]
			if entry.Response != lecture.ResponsePending {
				continue
			}
			// The decision prompt goes out as a template: lecturers are
			// usually outside the session window by evening. Template
			// quick-reply buttons come back as plain button events.
			msgID, err := s.client.SendTemplate(ctx, entry.WhatsApp, templateLectureConfirmation, []string{
				entry.Name,
				lec.Course,
				formatDate(lec.StartTime, s.location),
				formatTimeRange(lec.StartTime, lec.EndTime, s.location),
			})
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					"lecture_id": lec.ID,
					"lecturer":   entry.WhatsApp,
				}).Warn("Failed to send decision prompt: ", err)
				continue
			}
			if err := s.recordDecisionPrompt(ctx, lec.ID, entry.WhatsApp, msgID); err != nil {
				s.logger.WithField("lecture_id", lec.ID).Error("Failed to record decision prompt: ", err)
			}
		}
	}
	return nil
}

func (s *ReminderServiceImpl) recordDecisionPrompt(ctx context.Context, lectureID int64, recipient, msgID string) error {
	return s.promptRepo.Record(ctx, &prompt.Prompt{
		MessageID: msgID,
		LectureID: lectureID,
		Recipient: recipient,
		Kind:      prompt.KindNotification,
	})
}

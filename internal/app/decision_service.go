// internal/app/decision_service.go
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/event"
	"lecture_coordinator_bot/internal/domain/lecture"
	"lecture_coordinator_bot/internal/domain/pending"
	"lecture_coordinator_bot/internal/domain/prompt"
	domainWhatsApp "lecture_coordinator_bot/internal/domain/whatsapp"
	idb "lecture_coordinator_bot/internal/infra/database"
)

// DecisionService applies lecturer confirm/cancel/reschedule decisions and
// structured reschedule submissions to the lecture lifecycle.
type DecisionService interface {
	// HandleLecturerButton processes a Yes/No/Reschedule button reply. The
	// boolean reports whether the event was claimed; unclaimed events fall
	// through to the next handler in dispatch order.
	HandleLecturerButton(ctx context.Context, ev *event.Inbound) (bool, error)

	// HandleRescheduleSubmission processes a structured reschedule form
	// reply. Malformed form payloads fail loudly: they indicate an upstream
	// contract violation, not a recoverable domain state.
	HandleRescheduleSubmission(ctx context.Context, ev *event.Inbound) error
}

type DecisionServiceImpl struct {
	lectureRepo lecture.Repository
	promptRepo  prompt.Repository
	ledger      event.Ledger
	tracker     pending.Tracker
	notifier    Notifier
	client      domainWhatsApp.Client
	logger      *logrus.Logger
	location    *time.Location
}

func NewDecisionServiceImpl(
	lr lecture.Repository,
	pr prompt.Repository,
	ledger event.Ledger,
	tracker pending.Tracker,
	notifier Notifier,
	client domainWhatsApp.Client,
	logger *logrus.Logger,
	location *time.Location,
) *DecisionServiceImpl {
	return &DecisionServiceImpl{
		lectureRepo: lr,
		promptRepo:  pr,
		ledger:      ledger,
		tracker:     tracker,
		notifier:    notifier,
		client:      client,
		logger:      logger,
		location:    location,
	}
}

// normalizeDecision maps a button reply onto a lecturer response, or ""
// when the button is not a decision button at all.
func normalizeDecision(ev *event.Inbound) lecture.Response {
	switch ev.ButtonID {
	case buttonConfirmYes:
		return lecture.ResponseYes
	case buttonConfirmNo:
		return lecture.ResponseNo
	case buttonConfirmReschedule:
		return lecture.ResponseReschedule
	}
	switch strings.ToLower(strings.TrimSpace(ev.ButtonReply())) {
	case "yes":
		return lecture.ResponseYes
	case "no":
		return lecture.ResponseNo
	case "reschedule":
		return lecture.ResponseReschedule
	}
	return ""
}

func (s *DecisionServiceImpl) HandleLecturerButton(ctx context.Context, ev *event.Inbound) (bool, error) {
	// Cheap routing checks first, so unrelated events never touch the
	// ledger attributed to this handler.
	decision := normalizeDecision(ev)
	if decision == "" || ev.ReplyTo == "" {
		return false, nil
	}
	p, err := s.promptRepo.GetByMessageID(ctx, ev.ReplyTo)
	if err != nil {
		if err == idb.ErrPromptNotFound {
			return false, nil // not anchored to one of our decision prompts
		}
		return false, fmt.Errorf("failed to resolve decision prompt: %w", err)
	}
	if p.Kind != prompt.KindNotification {
		return false, nil
	}

	// The event is ours. Idempotency gate before any side effect.
	if dup, err := s.recordEvent(ctx, ev, p.LectureID); err != nil {
		return true, err
	} else if dup {
		return true, nil
	}

	// One decision per prompt: a second click on the same prompt (with a
	// fresh event id) loses this compare-and-set and gets an ack only.
	wasUnhandled, err := s.promptRepo.MarkHandledIfUnhandled(ctx, ev.ReplyTo)
	if err != nil {
		return true, fmt.Errorf("failed decision-handled gate: %w", err)
	}
	if !wasUnhandled {
		s.reply(ctx, p.Recipient, "Your response to this class has already been recorded.")
		return true, nil
	}

	lec, err := s.lectureRepo.GetByID(ctx, p.LectureID)
	if err != nil {
		return true, fmt.Errorf("failed to load lecture %d: %w", p.LectureID, err)
	}
	if lec.Locked {
		s.reply(ctx, p.Recipient, fmt.Sprintf(
			"This class has already been confirmed by %s. No further changes are possible.", lec.ConfirmedBy.String))
		return true, nil
	}

	entry := lec.FindLecturerByPhone(p.Recipient)
	if entry == nil {
		s.logger.WithFields(logrus.Fields{"lecture_id": lec.ID, "recipient": p.Recipient}).
			Warn("Decision prompt recipient is not a lecturer of this lecture.")
		return true, nil
	}

	switch decision {
	case lecture.ResponseYes:
		return true, s.applyYes(ctx, lec, entry)
	case lecture.ResponseNo:
		return true, s.applyNo(ctx, lec, entry)
	default:
		return true, s.applyReschedule(ctx, lec, entry)
	}
}

func (s *DecisionServiceImpl) applyYes(ctx context.Context, lec *lecture.Lecture, entry *lecture.Lecturer) error {
	if lec.Status == lecture.StatusConfirmed {
		s.reply(ctx, entry.WhatsApp, "This class is already confirmed.")
		return nil
	}

	won, err := s.lectureRepo.ConfirmIfUnlocked(ctx, lec.ID, entry.Name)
	if err != nil {
		return fmt.Errorf("failed to confirm lecture %d: %w", lec.ID, err)
	}
	if !won {
		current, err := s.lectureRepo.GetByID(ctx, lec.ID)
		if err != nil {
			return fmt.Errorf("failed to reload lecture %d: %w", lec.ID, err)
		}
		s.reply(ctx, entry.WhatsApp, fmt.Sprintf(
			"This class has already been confirmed by %s. No further changes are possible.", current.ConfirmedBy.String))
		return nil
	}

	if _, err := s.lectureRepo.SetLecturerResponse(ctx, lec.ID, entry.WhatsApp, lecture.ResponseYes); err != nil {
		return fmt.Errorf("failed to record yes response: %w", err)
	}

	lec.Status = lecture.StatusConfirmed
	lec.Locked = true
	lec.ConfirmedBy = sql.NullString{String: entry.Name, Valid: true}

	if err := s.sendFollowUpPrompt(ctx, lec, entry.WhatsApp); err != nil {
		s.logger.WithField("lecture_id", lec.ID).Warn("Failed to send confirm follow-up prompt: ", err)
	}
	return s.notifier.NotifyClass(ctx, lec, confirmedBody(lec, s.location))
}

func (s *DecisionServiceImpl) applyNo(ctx context.Context, lec *lecture.Lecture, entry *lecture.Lecturer) error {
	if lec.Status == lecture.StatusCancelled {
		s.reply(ctx, entry.WhatsApp, "This class is already cancelled.")
		return nil
	}

	if _, err := s.lectureRepo.SetLecturerResponse(ctx, lec.ID, entry.WhatsApp, lecture.ResponseNo); err != nil {
		return fmt.Errorf("failed to record no response: %w", err)
	}

	current, err := s.lectureRepo.GetByID(ctx, lec.ID)
	if err != nil {
		return fmt.Errorf("failed to reload lecture %d: %w", lec.ID, err)
	}
	if !current.AllLecturersDeclined() {
		s.reply(ctx, entry.WhatsApp,
			"Noted. We'll wait for the other lecturers before updating the students.")
		return nil
	}

	// Two final "no" replies can race past the unanimity check; the
	// conditional write lets exactly one of them cancel and notify.
	won, err := s.lectureRepo.CancelIfNotCancelled(ctx, lec.ID)
	if err != nil {
		return fmt.Errorf("failed to cancel lecture %d: %w", lec.ID, err)
	}
	if !won {
		s.reply(ctx, entry.WhatsApp, "This class is already cancelled.")
		return nil
	}
	current.Status = lecture.StatusCancelled

	if err := s.sendCancelNotePrompt(ctx, current, entry.WhatsApp); err != nil {
		s.logger.WithField("lecture_id", lec.ID).Warn("Failed to send cancellation-note prompt: ", err)
	}
	return s.notifier.NotifyClass(ctx, current, cancelledBody(current, s.location))
}

func (s *DecisionServiceImpl) applyReschedule(ctx context.Context, lec *lecture.Lecture, entry *lecture.Lecturer) error {
	if _, err := s.lectureRepo.SetLecturerResponse(ctx, lec.ID, entry.WhatsApp, lecture.ResponseReschedule); err != nil {
		return fmt.Errorf("failed to record reschedule response: %w", err)
	}
	if lec.Status != lecture.StatusRescheduled {
		if err := s.lectureRepo.UpdateStatus(ctx, lec.ID, lecture.StatusRescheduled); err != nil {
			return fmt.Errorf("failed to mark lecture rescheduled: %w", err)
		}
	}

	// Students are only notified once the new date/time arrives via the
	// reschedule form; the decision alone changes nothing for them.
	msgID, err := s.client.SendText(ctx, entry.WhatsApp,
		fmt.Sprintf("Please pick the new date and time for %s using the form below, e.g. reply to this message with the reschedule form.", lec.Course))
	if err != nil {
		return fmt.Errorf("failed to send reschedule form prompt: %w", err)
	}
	return s.promptRepo.Record(ctx, &prompt.Prompt{
		MessageID: msgID,
		LectureID: lec.ID,
		Recipient: entry.WhatsApp,
		Kind:      prompt.KindRescheduleForm,
	})
}

// rescheduleForm mirrors the field names of the structured reschedule form.
// Time fields arrive as "<index>_HH:MM".
type rescheduleForm struct {
	NewDate     string `json:"screen_0_New_Date_0"`
	ClassStarts string `json:"screen_0_Class_Starts_1"`
	ClassEnds   string `json:"screen_0_Class_Ends_2"`
	AddNote     string `json:"screen_0_Add_note_3"`
}

func (s *DecisionServiceImpl) HandleRescheduleSubmission(ctx context.Context, ev *event.Inbound) error {
	if ev.ReplyTo == "" {
		return fmt.Errorf("reschedule submission %s has no reply context", ev.ID)
	}
	p, err := s.promptRepo.GetByMessageID(ctx, ev.ReplyTo)
	if err != nil {
		if err == idb.ErrPromptNotFound {
			s.logger.WithField("event_id", ev.ID).Warn("Reschedule submission references an unknown prompt; dropping.")
			return nil
		}
		return fmt.Errorf("failed to resolve reschedule prompt: %w", err)
	}
	if p.Kind != prompt.KindRescheduleForm {
		s.logger.WithFields(logrus.Fields{"event_id": ev.ID, "prompt_kind": p.Kind}).
			Warn("Form reply anchored to a non-reschedule prompt; dropping.")
		return nil
	}

	if dup, err := s.recordEvent(ctx, ev, p.LectureID); err != nil {
		return err
	} else if dup {
		return nil
	}

	start, end, note, err := s.parseRescheduleForm(ev.FormJSON)
	if err != nil {
		return fmt.Errorf("malformed reschedule form for lecture %d: %w", p.LectureID, err)
	}

	lec, err := s.lectureRepo.GetByID(ctx, p.LectureID)
	if err != nil {
		return fmt.Errorf("failed to load lecture %d: %w", p.LectureID, err)
	}
	if lec.Status == lecture.StatusRescheduled && lec.StartTime.Equal(start) && lec.EndTime.Equal(end) {
		s.reply(ctx, p.Recipient, "That schedule is already in place. The students have been informed.")
		return nil
	}

	if err := s.lectureRepo.UpdateTimes(ctx, lec.ID, start, end, lecture.StatusRescheduled); err != nil {
		return fmt.Errorf("failed to persist rescheduled times: %w", err)
	}
	lec.StartTime = start
	lec.EndTime = end
	lec.Status = lecture.StatusRescheduled

	if note != "" {
		if err := s.lectureRepo.AddNote(ctx, &lecture.Note{LectureID: lec.ID, Text: note, AddedBy: p.Recipient}); err != nil {
			s.logger.WithField("lecture_id", lec.ID).Warn("Failed to store reschedule note: ", err)
		}
	}

	s.reply(ctx, p.Recipient, fmt.Sprintf("Got it. %s moved to %s, %s. The students will be informed.",
		lec.Course, formatDate(start, s.location), formatTimeRange(start, end, s.location)))
	return s.notifier.NotifyClass(ctx, lec, rescheduledBody(lec, s.location, note))
}

// parseRescheduleForm builds the new wall-clock start/end in the operating
// timezone from the form's separate date and time components. The values are
// assembled with time.Date rather than parsed as a combined string, which
// would silently go through UTC.
func (s *DecisionServiceImpl) parseRescheduleForm(formJSON string) (start, end time.Time, note string, err error) {
	var f rescheduleForm
	if err = json.Unmarshal([]byte(formJSON), &f); err != nil {
		return start, end, "", fmt.Errorf("invalid form payload: %w", err)
	}

	day, err := time.Parse("2006-01-02", f.NewDate)
	if err != nil {
		return start, end, "", fmt.Errorf("invalid form date %q: %w", f.NewDate, err)
	}
	startHour, startMin, err := parseFormTime(f.ClassStarts)
	if err != nil {
		return start, end, "", err
	}
	endHour, endMin, err := parseFormTime(f.ClassEnds)
	if err != nil {
		return start, end, "", err
	}

	start = time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, s.location)
	end = time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, s.location)
	return start, end, strings.TrimSpace(f.AddNote), nil
}

func parseFormTime(raw string) (hour, minute int, err error) {
	if raw == "" {
		return 0, 0, fmt.Errorf("missing form time value")
	}
	parts := strings.Split(raw, "_")
	clock := parts[len(parts)-1]
	hm := strings.Split(clock, ":")
	if len(hm) != 2 {
		return 0, 0, fmt.Errorf("invalid form time value %q", raw)
	}
	hour, err = strconv.Atoi(hm[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid form hour %q: %w", raw, err)
	}
	minute, err = strconv.Atoi(hm[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid form minute %q: %w", raw, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("form time %q out of range", raw)
	}
	return hour, minute, nil
}

// sendFollowUpPrompt offers the confirming lecturer an optional note or
// document for the students, and focuses a pending action on the answer.
func (s *DecisionServiceImpl) sendFollowUpPrompt(ctx context.Context, lec *lecture.Lecture, lecturerPhone string) error {
	msgID, err := s.client.SendText(ctx, lecturerPhone,
		fmt.Sprintf("Thank you for confirming %s. Would you like to add a note or share a document with the class?", lec.Course),
		domainWhatsApp.Button{ID: buttonAddNote, Title: "Add a note"},
		domainWhatsApp.Button{ID: buttonAddDocument, Title: "Share a document"},
		domainWhatsApp.Button{ID: buttonContribDone, Title: "No, that's all"},
	)
	if err != nil {
		return err
	}
	if err := s.promptRepo.Record(ctx, &prompt.Prompt{
		MessageID: msgID,
		LectureID: lec.ID,
		Recipient: lecturerPhone,
		Kind:      prompt.KindFollowUp,
	}); err != nil {
		return err
	}
	return s.tracker.CreateFocused(ctx, &pending.Action{
		LectureID:        lec.ID,
		LecturerWhatsApp: lecturerPhone,
		Kind:             pending.ActionAwaitingChoice,
		PromptID:         msgID,
	})
}

// sendCancelNotePrompt solicits an optional cancellation note. Only text is
// accepted for this one.
func (s *DecisionServiceImpl) sendCancelNotePrompt(ctx context.Context, lec *lecture.Lecture, lecturerPhone string) error {
	msgID, err := s.client.SendText(ctx, lecturerPhone,
		fmt.Sprintf("%s has been cancelled and the students notified. Reply with a short note if you'd like to tell them why.", lec.Course),
		domainWhatsApp.Button{ID: buttonContribDone, Title: "Skip"},
	)
	if err != nil {
		return err
	}
	if err := s.promptRepo.Record(ctx, &prompt.Prompt{
		MessageID: msgID,
		LectureID: lec.ID,
		Recipient: lecturerPhone,
		Kind:      prompt.KindCancelFollowUp,
	}); err != nil {
		return err
	}
	return s.tracker.CreateFocused(ctx, &pending.Action{
		LectureID:        lec.ID,
		LecturerWhatsApp: lecturerPhone,
		Kind:             pending.ActionAwaitingCancelChoice,
		PromptID:         msgID,
	})
}

func (s *DecisionServiceImpl) recordEvent(ctx context.Context, ev *event.Inbound, lectureID int64) (duplicate bool, err error) {
	return recordInbound(ctx, s.ledger, s.logger, ev, lectureID)
}

func (s *DecisionServiceImpl) reply(ctx context.Context, to, body string) {
	sendInfo(ctx, s.client, s.logger, to, body)
}

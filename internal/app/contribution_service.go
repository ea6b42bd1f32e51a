// internal/app/contribution_service.go
package app

import (
	"context"
	"fmt"
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

// ContributionService captures a lecturer's free-form notes and documents
// against the lecture their pending action points at, and relays them to the
// students.
type ContributionService interface {
	// Handle consumes a free-form text or document event from a lecturer
	// with a pending action. The boolean reports whether the event was
	// claimed.
	Handle(ctx context.Context, ev *event.Inbound) (bool, error)

	// HandleChoiceButton consumes the note/document/done buttons of a
	// follow-up prompt.
	HandleChoiceButton(ctx context.Context, ev *event.Inbound) (bool, error)
}

type ContributionServiceImpl struct {
	lectureRepo lecture.Repository
	promptRepo  prompt.Repository
	ledger      event.Ledger
	tracker     pending.Tracker
	notifier    Notifier
	client      domainWhatsApp.Client
	logger      *logrus.Logger
	location    *time.Location
}

func NewContributionServiceImpl(
	lr lecture.Repository,
	pr prompt.Repository,
	ledger event.Ledger,
	tracker pending.Tracker,
	notifier Notifier,
	client domainWhatsApp.Client,
	logger *logrus.Logger,
	location *time.Location,
) *ContributionServiceImpl {
	return &ContributionServiceImpl{
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

func (s *ContributionServiceImpl) Handle(ctx context.Context, ev *event.Inbound) (bool, error) {
	actor := domainWhatsApp.ToLocal(ev.From)
	action, err := s.tracker.Resolve(ctx, actor, ev.ReplyTo)
	if err != nil {
		if err == idb.ErrPendingActionNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve pending action: %w", err)
	}

	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, action.LectureID); err != nil {
		return true, err
	} else if dup {
		return true, nil
	}

	// An awaiting_choice entry narrows to the concrete action once the
	// content type is known. The cancellation variant only accepts text.
	kind := action.Kind
	switch kind {
	case pending.ActionAwaitingChoice:
		if ev.Kind == event.KindDocument {
			kind = pending.ActionAddDocument
		} else {
			kind = pending.ActionAddNote
		}
		if err := s.tracker.Narrow(ctx, action.ID, kind); err != nil {
			return true, fmt.Errorf("failed to narrow pending action: %w", err)
		}
	case pending.ActionAwaitingCancelChoice:
		if ev.Kind == event.KindDocument {
			sendInfo(ctx, s.client, s.logger, actor, "Please send the cancellation note as a text message.")
			return true, nil
		}
	}

	lec, err := s.lectureRepo.GetByID(ctx, action.LectureID)
	if err != nil {
		return true, fmt.Errorf("failed to load lecture %d: %w", action.LectureID, err)
	}

	switch {
	case kind == pending.ActionAwaitingCancelChoice:
		return true, s.captureCancelNote(ctx, lec, action, ev.Text)
	case kind == pending.ActionAddDocument && ev.Kind == event.KindDocument:
		return true, s.captureDocument(ctx, lec, action, ev.Document)
	case kind == pending.ActionAddNote && ev.Kind == event.KindText:
		return true, s.captureNote(ctx, lec, action, ev.Text)
	case kind == pending.ActionAddDocument:
		sendInfo(ctx, s.client, s.logger, actor, "Please send the document as a file attachment.")
		return true, nil
	default:
		sendInfo(ctx, s.client, s.logger, actor, "Please send the note as a text message.")
		return true, nil
	}
}

func (s *ContributionServiceImpl) HandleChoiceButton(ctx context.Context, ev *event.Inbound) (bool, error) {
	switch ev.ButtonID {
	case buttonAddNote, buttonAddDocument, buttonContribDone:
	default:
		return false, nil
	}

	actor := domainWhatsApp.ToLocal(ev.From)
	action, err := s.tracker.Resolve(ctx, actor, ev.ReplyTo)
	if err != nil {
		if err == idb.ErrPendingActionNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve pending action: %w", err)
	}

	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, action.LectureID); err != nil {
		return true, err
	} else if dup {
		return true, nil
	}

	switch ev.ButtonID {
	case buttonContribDone:
		if err := s.tracker.Close(ctx, action.ID); err != nil {
			return true, fmt.Errorf("failed to close pending action: %w", err)
		}
		sendInfo(ctx, s.client, s.logger, actor, "Alright, thank you!")
	case buttonAddNote:
		if err := s.tracker.Narrow(ctx, action.ID, pending.ActionAddNote); err != nil {
			return true, fmt.Errorf("failed to narrow pending action: %w", err)
		}
		sendInfo(ctx, s.client, s.logger, actor, "Please type the note you'd like the students to see.")
	case buttonAddDocument:
		if err := s.tracker.Narrow(ctx, action.ID, pending.ActionAddDocument); err != nil {
			return true, fmt.Errorf("failed to narrow pending action: %w", err)
		}
		sendInfo(ctx, s.client, s.logger, actor, "Please send the document you'd like to share with the students.")
	}
	return true, nil
}

func (s *ContributionServiceImpl) captureNote(ctx context.Context, lec *lecture.Lecture, action *pending.Action, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		sendInfo(ctx, s.client, s.logger, action.LecturerWhatsApp, "That note looks empty. Please try again.")
		return nil
	}

	// Secondary defensive check; the ledger already blocks true duplicates
	// by event id.
	if hasEquivalentNote(lec, text) {
		sendInfo(ctx, s.client, s.logger, action.LecturerWhatsApp, "That note has already been shared with the students.")
		return nil
	}

	if err := s.lectureRepo.AddNote(ctx, &lecture.Note{
		LectureID: lec.ID,
		Text:      text,
		AddedBy:   action.LecturerWhatsApp,
	}); err != nil {
		return fmt.Errorf("failed to store lecture note: %w", err)
	}

	if err := s.notifier.NotifyClass(ctx, lec, noteBody(lec, text)); err != nil {
		return err
	}

	// Note actions stay open so the lecturer can send several notes in a
	// row; only the "done" button closes them.
	return s.sendContribFollowUp(ctx, lec, action.LecturerWhatsApp,
		"Note shared with the class. Anything else?")
}

func (s *ContributionServiceImpl) captureDocument(ctx context.Context, lec *lecture.Lecture, action *pending.Action, doc *event.DocumentMeta) error {
	if doc == nil {
		return fmt.Errorf("document event for lecture %d carries no attachment", lec.ID)
	}
	if err := s.lectureRepo.AddDocument(ctx, &lecture.Document{
		LectureID: lec.ID,
		MediaID:   doc.MediaID,
		FileName:  doc.FileName,
		MimeType:  doc.MimeType,
	}); err != nil {
		return fmt.Errorf("failed to store lecture document: %w", err)
	}

	caption := fmt.Sprintf("📄 Shared for %s by %s", lec.Course, lec.LecturerDisplay())
	if err := s.notifier.NotifyClassDocument(ctx, lec, doc.MediaID, doc.FileName, caption); err != nil {
		return err
	}

	// Document contributions consume the focus.
	if err := s.tracker.Deactivate(ctx, action.ID); err != nil {
		return fmt.Errorf("failed to deactivate pending action: %w", err)
	}
	return s.sendContribFollowUp(ctx, lec, action.LecturerWhatsApp,
		"Document shared with the class. Anything else?")
}

func (s *ContributionServiceImpl) captureCancelNote(ctx context.Context, lec *lecture.Lecture, action *pending.Action, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		sendInfo(ctx, s.client, s.logger, action.LecturerWhatsApp, "That note looks empty. Please try again.")
		return nil
	}
	if err := s.lectureRepo.AddNote(ctx, &lecture.Note{
		LectureID: lec.ID,
		Text:      text,
		AddedBy:   action.LecturerWhatsApp,
	}); err != nil {
		return fmt.Errorf("failed to store cancellation note: %w", err)
	}
	if err := s.tracker.Close(ctx, action.ID); err != nil {
		return fmt.Errorf("failed to close pending action: %w", err)
	}
	sendInfo(ctx, s.client, s.logger, action.LecturerWhatsApp, "Thank you, the students have been told.")
	return s.notifier.NotifyClass(ctx, lec,
		fmt.Sprintf("📝 *About the cancelled %s class*\n\n%s", lec.Course, text))
}

// sendContribFollowUp keeps the contribution conversation going and records
// the new prompt so the next reply correlates.
func (s *ContributionServiceImpl) sendContribFollowUp(ctx context.Context, lec *lecture.Lecture, lecturerPhone, body string) error {
	msgID, err := s.client.SendText(ctx, lecturerPhone, body,
		domainWhatsApp.Button{ID: buttonAddNote, Title: "Add a note"},
		domainWhatsApp.Button{ID: buttonAddDocument, Title: "Share a document"},
		domainWhatsApp.Button{ID: buttonContribDone, Title: "No, that's all"},
	)
	if err != nil {
		s.logger.WithField("lecture_id", lec.ID).Warn("Failed to send contribution follow-up: ", err)
		return nil
	}
	if err := s.promptRepo.Record(ctx, &prompt.Prompt{
		MessageID: msgID,
		LectureID: lec.ID,
		Recipient: lecturerPhone,
		Kind:      prompt.KindContribFollowUp,
	}); err != nil {
		return fmt.Errorf("failed to record contribution follow-up prompt: %w", err)
	}
	return s.tracker.CreateFocused(ctx, &pending.Action{
		LectureID:        lec.ID,
		LecturerWhatsApp: lecturerPhone,
		Kind:             pending.ActionAwaitingChoice,
		PromptID:         msgID,
	})
}

// hasEquivalentNote compares against existing notes with whitespace
// normalized.
func hasEquivalentNote(lec *lecture.Lecture, text string) bool {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	for _, n := range lec.Notes {
		if strings.Join(strings.Fields(strings.ToLower(n.Text)), " ") == normalized {
			return true
		}
	}
	return false
}

// internal/app/admin_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/lecture"
)

// LecturePatch carries the administratively editable lecture fields; nil
// means "leave unchanged".
type LecturePatch struct {
	Course      *string
	Location    *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Status      *lecture.Status

	// LecturerName renames a lecturer entry. LecturerID picks the entry;
	// it may be omitted when the lecture has exactly one lecturer.
	LecturerID   *int64
	LecturerName *string
}

// AdminService applies direct lecture edits (not lecturer-button driven) and
// recomputes the effective status plus who gets told about it.
type AdminService interface {
	// UpdateLecture persists the patch. When notify is false the
	// notification step is always skipped, whatever changed.
	UpdateLecture(ctx context.Context, id int64, patch LecturePatch, notify bool) (*lecture.Lecture, error)
}

type AdminServiceImpl struct {
	lectureRepo lecture.Repository
	notifier    Notifier
	logger      *logrus.Logger
	location    *time.Location
}

func NewAdminServiceImpl(lr lecture.Repository, notifier Notifier, logger *logrus.Logger, location *time.Location) *AdminServiceImpl {
	return &AdminServiceImpl{
		lectureRepo: lr,
		notifier:    notifier,
		logger:      logger,
		location:    location,
	}
}

func (s *AdminServiceImpl) UpdateLecture(ctx context.Context, id int64, patch LecturePatch, notify bool) (*lecture.Lecture, error) {
	lec, err := s.lectureRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load lecture %d: %w", id, err)
	}

	lecturerEntry, err := resolveLecturerEntry(lec, patch)
	if err != nil {
		return nil, err
	}

	timeChanged := (patch.StartTime != nil && !patch.StartTime.Equal(lec.StartTime)) ||
		(patch.EndTime != nil && !patch.EndTime.Equal(lec.EndTime))
	locationChanged := patch.Location != nil && *patch.Location != lec.Location.String
	statusChanged := patch.Status != nil && *patch.Status != lec.Status
	courseChanged := (patch.Course != nil && *patch.Course != lec.Course) ||
		(patch.Description != nil && *patch.Description != lec.Description.String)
	lecturerChanged := lecturerEntry != nil && *patch.LecturerName != lecturerEntry.Name

	if patch.Course != nil {
		lec.Course = *patch.Course
	}
	if patch.Description != nil {
		lec.Description = sql.NullString{String: *patch.Description, Valid: *patch.Description != ""}
	}
	if patch.Location != nil {
		lec.Location = sql.NullString{String: *patch.Location, Valid: *patch.Location != ""}
	}
	if patch.StartTime != nil {
		lec.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		lec.EndTime = *patch.EndTime
	}
	if patch.Status != nil {
		lec.Status = *patch.Status
	}
	// A date or time change overrides any explicitly supplied status.
	if timeChanged {
		lec.Status = lecture.StatusRescheduled
	}

	if err := s.lectureRepo.Update(ctx, lec); err != nil {
		return nil, fmt.Errorf("failed to persist lecture %d edit: %w", id, err)
	}
	if lecturerChanged {
		if err := s.lectureRepo.UpdateLecturerName(ctx, lec.ID, lecturerEntry.ID, *patch.LecturerName); err != nil {
			return nil, fmt.Errorf("failed to rename lecturer on lecture %d: %w", id, err)
		}
		lecturerEntry.Name = *patch.LecturerName
	}

	if !notify {
		return lec, nil
	}

	switch {
	case timeChanged:
		err = s.notifier.NotifyClass(ctx, lec, rescheduledBody(lec, s.location, ""))
	case statusChanged:
		err = s.notifyStatus(ctx, lec)
	case locationChanged:
		err = s.notifier.NotifyClass(ctx, lec, locationUpdateBody(lec, s.location))
	case courseChanged || lecturerChanged:
		// Course, description and lecturer-name edits persist silently.
		return lec, nil
	default:
		// No material change detected.
		return lec, nil
	}
	if err != nil {
		return lec, err
	}
	return lec, nil
}

// resolveLecturerEntry picks the lecturer entry a rename applies to, or nil
// when the patch carries no rename.
func resolveLecturerEntry(lec *lecture.Lecture, patch LecturePatch) (*lecture.Lecturer, error) {
	if patch.LecturerName == nil {
		return nil, nil
	}
	if patch.LecturerID != nil {
		for i := range lec.Lecturers {
			if lec.Lecturers[i].ID == *patch.LecturerID {
				return &lec.Lecturers[i], nil
			}
		}
		return nil, fmt.Errorf("lecture %d has no lecturer entry %d", lec.ID, *patch.LecturerID)
	}
	if len(lec.Lecturers) != 1 {
		return nil, fmt.Errorf("lecture %d has %d lecturers; lecturer_id is required for a rename", lec.ID, len(lec.Lecturers))
	}
	return &lec.Lecturers[0], nil
}

func (s *AdminServiceImpl) notifyStatus(ctx context.Context, lec *lecture.Lecture) error {
	switch lec.Status {
	case lecture.StatusConfirmed:
		return s.notifier.NotifyClass(ctx, lec, confirmedBody(lec, s.location))
	case lecture.StatusCancelled:
		return s.notifier.NotifyClass(ctx, lec, cancelledBody(lec, s.location))
	case lecture.StatusRescheduled:
		return s.notifier.NotifyClass(ctx, lec, rescheduledBody(lec, s.location, ""))
	case lecture.StatusOngoing:
		return s.notifier.NotifyClass(ctx, lec, ongoingBody(lec, s.location))
	default:
		return s.notifier.NotifyClass(ctx, lec, fmt.Sprintf(
			"%s *Class Update*\n\n%s is now %s.\n\n📅 %s\n🕒 %s",
			statusEmoji(lec.Status), lec.Course, lec.Status,
			formatDate(lec.StartTime, s.location), formatTimeRange(lec.StartTime, lec.EndTime, s.location)))
	}
}

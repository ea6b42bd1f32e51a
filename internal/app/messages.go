// internal/app/messages.go
package app

import (
	"fmt"
	"strings"
	"time"

	"lecture_coordinator_bot/internal/domain/lecture"
)

// Button ids used on outbound interactive messages. Replies carry these back
// verbatim, so handlers match on them.
const (
	buttonConfirmYes        = "confirm_yes"
	buttonConfirmNo         = "confirm_no"
	buttonConfirmReschedule = "confirm_reschedule"
	buttonAddNote           = "contrib_add_note"
	buttonAddDocument       = "contrib_add_document"
	buttonContribDone       = "contrib_done"
	buttonViewSchedule      = "view_schedule"
)

// Template names pre-approved for out-of-session delivery.
const (
	templateClassUpdate         = "class_update"
	templateLectureConfirmation = "lecture_confirmation"
	templateLectureReminder     = "lecture_reminder"
)

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Monday, 2 January 2006")
}

func formatTimeRange(start, end time.Time, loc *time.Location) string {
	return start.In(loc).Format("3:04 PM") + " - " + end.In(loc).Format("3:04 PM")
}

func lectureLocation(l *lecture.Lecture) string {
	if l.Location.Valid && l.Location.String != "" {
		return l.Location.String
	}
	return "TBA"
}

func confirmedBody(l *lecture.Lecture, loc *time.Location) string {
	return fmt.Sprintf(
		"✅ *Class Confirmed*\n\n%s with %s is holding.\n\n📅 %s\n🕒 %s\n📍 %s",
		l.Course, l.LecturerDisplay(),
		formatDate(l.StartTime, loc), formatTimeRange(l.StartTime, l.EndTime, loc),
		lectureLocation(l),
	)
}

func cancelledBody(l *lecture.Lecture, loc *time.Location) string {
	return fmt.Sprintf(
		"❌ *Class Cancelled*\n\n%s scheduled for %s will no longer hold.",
		l.Course, formatDate(l.StartTime, loc),
	)
}

func rescheduledBody(l *lecture.Lecture, loc *time.Location, note string) string {
	body := fmt.Sprintf(
		"🔄 *Class Rescheduled*\n\n%s with %s has been moved.\n\n📅 %s\n🕒 %s\n📍 %s",
		l.Course, l.LecturerDisplay(),
		formatDate(l.StartTime, loc), formatTimeRange(l.StartTime, l.EndTime, loc),
		lectureLocation(l),
	)
	if note != "" {
		body += "\n\n📝 " + note
	}
	return body
}

func locationUpdateBody(l *lecture.Lecture, loc *time.Location) string {
	return fmt.Sprintf(
		"✅ *Class Update*\n\n%s now holds at a new venue.\n\n📅 %s\n🕒 %s\n📍 %s",
		l.Course,
		formatDate(l.StartTime, loc), formatTimeRange(l.StartTime, l.EndTime, loc),
		lectureLocation(l),
	)
}

func ongoingBody(l *lecture.Lecture, loc *time.Location) string {
	return fmt.Sprintf(
		"🟢 *Class Ongoing*\n\n%s with %s has started.\n\n📍 %s",
		l.Course, l.LecturerDisplay(), lectureLocation(l),
	)
}

func noteBody(l *lecture.Lecture, note string) string {
	return fmt.Sprintf("📝 *Note on %s*\n\nFrom %s:\n\n%s", l.Course, l.LecturerDisplay(), note)
}

func statusEmoji(s lecture.Status) string {
	switch s {
	case lecture.StatusConfirmed:
		return "✅"
	case lecture.StatusCancelled:
		return "❌"
	case lecture.StatusRescheduled:
		return "🔄"
	case lecture.StatusOngoing:
		return "🟢"
	case lecture.StatusCompleted:
		return "☑️"
	default:
		return "🕒"
	}
}

// buildScheduleText renders a day's lectures as one message; label is
// something like "today" or "tomorrow".
func buildScheduleText(lectures []*lecture.Lecture, label string, loc *time.Location) string {
	if len(lectures) == 0 {
		return fmt.Sprintf("📅 You have no classes scheduled for %s.", label)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *Your schedule for %s*\n", label)
	for _, l := range lectures {
		fmt.Fprintf(&b, "\n%s *%s* (%s)\n🕒 %s\n📍 %s\n👤 %s\n",
			statusEmoji(l.Status), l.Course, l.Status,
			formatTimeRange(l.StartTime, l.EndTime, loc),
			lectureLocation(l), l.LecturerDisplay(),
		)
	}
	return strings.TrimSpace(b.String())
}

// internal/domain/lecture/lecture.go
package lecture

import (
	"database/sql"
	"time"
)

// Status is the lifecycle status of a lecture.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusConfirmed   Status = "Confirmed"
	StatusCancelled   Status = "Cancelled"
	StatusRescheduled Status = "Rescheduled"
	StatusUpcoming    Status = "Upcoming"
	StatusOngoing     Status = "Ongoing"
	StatusCompleted   Status = "Completed"
)

// Response is a lecturer's decision on a lecture. It transitions only
// pending -> {yes, no, reschedule}, never backward.
type Response string

const (
	ResponsePending    Response = "pending"
	ResponseYes        Response = "yes"
	ResponseNo         Response = "no"
	ResponseReschedule Response = "reschedule"
)

// MaxLecturers is the maximum number of lecturer entries per lecture.
const MaxLecturers = 3

// Lecturer is one lecturer entry embedded in a lecture.
// Corresponds to the 'lecture_lecturers' table.
type Lecturer struct {
	ID           int64
	LectureID    int64
	Name         string
	WhatsApp     string // local msisdn, e.g. 080...
	Response     Response
	RespondedAt  sql.NullTime
	ReminderSent bool
}

// Note is a free-text contribution from a lecturer.
type Note struct {
	ID        int64
	LectureID int64
	Text      string
	AddedBy   string // lecturer msisdn
	CreatedAt time.Time
}

// Document is an uploaded document reference. The media id is an opaque
// transport handle that can be re-sent to other recipients.
type Document struct {
	ID        int64
	LectureID int64
	MediaID   string
	FileName  string
	MimeType  string
}

// Reminder records whether (and how) the lecture-day reminder went out.
type Reminder struct {
	Sent    bool
	SentAt  sql.NullTime
	SentVia sql.NullString // "session" or "template"
}

// Announcement records the one-shot "class is ongoing" broadcast.
type Announcement struct {
	Sent   bool
	SentAt sql.NullTime
}

// Lecture represents one scheduled class session.
type Lecture struct {
	ID          int64
	ClassID     int64
	Course      string
	Location    sql.NullString
	Description sql.NullString
	StartTime   time.Time
	EndTime     time.Time
	Status      Status

	// Locked marks the confirm decision as finalized by one authoritative
	// lecturer; once set, no further decision may alter status.
	Locked      bool
	ConfirmedBy sql.NullString

	Lecturers    []Lecturer
	Notes        []Note
	Documents    []Document
	Reminder     Reminder
	Announcement Announcement

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindLecturerByPhone returns the lecturer entry matching the given local
// msisdn, or nil if the phone belongs to none of the lecture's lecturers.
func (l *Lecture) FindLecturerByPhone(phone string) *Lecturer {
	for i := range l.Lecturers {
		if l.Lecturers[i].WhatsApp == phone {
			return &l.Lecturers[i]
		}
	}
	return nil
}

// AllLecturersDeclined reports whether every lecturer entry has responded
// "no". Cancellation requires a unanimous decline.
func (l *Lecture) AllLecturersDeclined() bool {
	if len(l.Lecturers) == 0 {
		return false
	}
	for i := range l.Lecturers {
		if l.Lecturers[i].Response != ResponseNo {
			return false
		}
	}
	return true
}

// LecturerDisplay returns the name to show students: the authoritative
// lecturer once locked, otherwise all lecturer names joined.
func (l *Lecture) LecturerDisplay() string {
	if l.ConfirmedBy.Valid && l.ConfirmedBy.String != "" {
		return l.ConfirmedBy.String
	}
	display := ""
	for i := range l.Lecturers {
		if l.Lecturers[i].Name == "" {
			continue
		}
		if display != "" {
			display += " / "
		}
		display += l.Lecturers[i].Name
	}
	if display == "" {
		return "TBA"
	}
	return display
}

// StartsOn reports whether the lecture starts on the same calendar day as
// ref, evaluated in ref's location.
func (l *Lecture) StartsOn(ref time.Time) bool {
	start := l.StartTime.In(ref.Location())
	ry, rm, rd := ref.Date()
	sy, sm, sd := start.Date()
	return ry == sy && rm == sm && rd == sd
}

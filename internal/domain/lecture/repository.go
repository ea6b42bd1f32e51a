// internal/domain/lecture/repository.go
package lecture

import (
	"context"
	"time"
)

// Repository defines the persistence operations for Lecture aggregates.
//
// The conditional operations (SetLecturerResponse, ConfirmIfUnlocked,
// MarkAnnouncedIfUnannounced) must be implemented as single atomic
// conditional writes; their boolean result reports whether this caller won
// the transition. All correctness under concurrent webhook deliveries rests
// on these primitives.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Lecture, error)

	// ListByClassBetween returns the class's lectures whose start time falls
	// in [from, to], ordered by start time.
	ListByClassBetween(ctx context.Context, classID int64, from, to time.Time) ([]*Lecture, error)
	// ListStartingBetween returns all lectures starting in [from, to],
	// across classes. Used by the cron-driven jobs.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*Lecture, error)

	// Update persists the lecture's scalar fields (course, location,
	// description, times, status). Lecturer entries, notes and documents
	// have their own operations.
	Update(ctx context.Context, l *Lecture) error

	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateTimes(ctx context.Context, id int64, start, end time.Time, status Status) error

	// SetLecturerResponse transitions the lecturer entry's response from
	// pending to the given value and stamps respondedAt. Returns false if
	// the entry had already left pending (the transition is one-way).
	SetLecturerResponse(ctx context.Context, lectureID int64, phone string, response Response) (bool, error)

	// ConfirmIfUnlocked atomically sets status=Confirmed, locked=true and
	// confirmedBy, provided the lecture is not locked yet. Returns false if
	// another decision already holds the lock.
	ConfirmIfUnlocked(ctx context.Context, id int64, confirmedBy string) (bool, error)

	// CancelIfNotCancelled atomically moves the lecture to Cancelled unless
	// it is cancelled already. Returns false when another delivery performed
	// the transition first; only the winner notifies students.
	CancelIfNotCancelled(ctx context.Context, id int64) (bool, error)

	// MarkAnnouncedIfUnannounced atomically flips announcement.sent from
	// false to true and moves the lecture to Ongoing. First click wins.
	MarkAnnouncedIfUnannounced(ctx context.Context, id int64) (bool, error)

	// UpdateLecturerName renames one lecturer entry of the lecture.
	UpdateLecturerName(ctx context.Context, lectureID, entryID int64, name string) error

	AddNote(ctx context.Context, n *Note) error
	AddDocument(ctx context.Context, d *Document) error

	MarkLecturerReminded(ctx context.Context, lectureID int64, phone string) error
	SetReminderRecord(ctx context.Context, id int64, via string) error
}

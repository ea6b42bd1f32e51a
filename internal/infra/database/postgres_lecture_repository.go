// internal/infra/database/postgres_lecture_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lecture_coordinator_bot/internal/domain/lecture"
)

var ErrLectureNotFound = fmt.Errorf("lecture not found")
var ErrLecturerEntryNotFound = fmt.Errorf("lecturer entry not found for lecture")

type PostgresLectureRepository struct {
	db *sql.DB
}

func NewPostgresLectureRepository(db *sql.DB) *PostgresLectureRepository {
	return &PostgresLectureRepository{db: db}
}

const lectureColumns = `id, class_id, course, location, description, start_time, end_time, status,
       locked, confirmed_by, reminder_sent, reminder_sent_at, reminder_sent_via,
       announcement_sent, announcement_sent_at, created_at, updated_at`

func scanLecture(scanner interface{ Scan(...any) error }) (*lecture.Lecture, error) {
	l := lecture.Lecture{}
	err := scanner.Scan(
		&l.ID, &l.ClassID, &l.Course, &l.Location, &l.Description, &l.StartTime, &l.EndTime, &l.Status,
		&l.Locked, &l.ConfirmedBy, &l.Reminder.Sent, &l.Reminder.SentAt, &l.Reminder.SentVia,
		&l.Announcement.Sent, &l.Announcement.SentAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLectureNotFound
		}
		return nil, fmt.Errorf("error scanning lecture: %w", err)
	}
	return &l, nil
}

func (r *PostgresLectureRepository) GetByID(ctx context.Context, id int64) (*lecture.Lecture, error) {
	l, err := scanLecture(r.db.QueryRowContext(ctx,
		`SELECT `+lectureColumns+` FROM lectures WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadAggregates(ctx, []*lecture.Lecture{l}); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *PostgresLectureRepository) ListByClassBetween(ctx context.Context, classID int64, from, to time.Time) ([]*lecture.Lecture, error) {
	return r.list(ctx,
		`SELECT `+lectureColumns+` FROM lectures
          WHERE class_id = $1 AND start_time >= $2 AND start_time <= $3
          ORDER BY start_time ASC`, classID, from, to)
}

func (r *PostgresLectureRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*lecture.Lecture, error) {
	return r.list(ctx,
		`SELECT `+lectureColumns+` FROM lectures
          WHERE start_time >= $1 AND start_time <= $2
          ORDER BY start_time ASC`, from, to)
}

func (r *PostgresLectureRepository) list(ctx context.Context, query string, args ...any) ([]*lecture.Lecture, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing lectures: %w", err)
	}
	defer rows.Close()

	var lectures []*lecture.Lecture
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lecture rows: %w", err)
	}

	if err := r.loadAggregates(ctx, lectures); err != nil {
		return nil, err
	}
	return lectures, nil
}

// loadAggregates fills in the lecturer entries, notes and documents for the
// given lectures with one query per child table.
func (r *PostgresLectureRepository) loadAggregates(ctx context.Context, lectures []*lecture.Lecture) error {
	if len(lectures) == 0 {
		return nil
	}
	byID := make(map[int64]*lecture.Lecture, len(lectures))
	ids := make([]int64, 0, len(lectures))
	for _, l := range lectures {
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lecture_id, name, whatsapp, response, responded_at, reminder_sent
          FROM lecture_lecturers WHERE lecture_id = ANY($1) ORDER BY id ASC`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error loading lecturer entries: %w", err)
	}
	for rows.Next() {
		e := lecture.Lecturer{}
		if err := rows.Scan(&e.ID, &e.LectureID, &e.Name, &e.WhatsApp, &e.Response, &e.RespondedAt, &e.ReminderSent); err != nil {
			rows.Close()
			return fmt.Errorf("error scanning lecturer entry: %w", err)
		}
		if l := byID[e.LectureID]; l != nil {
			l.Lecturers = append(l.Lecturers, e)
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating lecturer rows: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT id, lecture_id, note, added_by, created_at
          FROM lecture_notes WHERE lecture_id = ANY($1) ORDER BY created_at ASC`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error loading lecture notes: %w", err)
	}
	for rows.Next() {
		n := lecture.Note{}
		if err := rows.Scan(&n.ID, &n.LectureID, &n.Text, &n.AddedBy, &n.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("error scanning lecture note: %w", err)
		}
		if l := byID[n.LectureID]; l != nil {
			l.Notes = append(l.Notes, n)
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating note rows: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT id, lecture_id, media_id, file_name, mime_type
          FROM lecture_documents WHERE lecture_id = ANY($1) ORDER BY id ASC`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error loading lecture documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d := lecture.Document{}
		if err := rows.Scan(&d.ID, &d.LectureID, &d.MediaID, &d.FileName, &d.MimeType); err != nil {
			return fmt.Errorf("error scanning lecture document: %w", err)
		}
		if l := byID[d.LectureID]; l != nil {
			l.Documents = append(l.Documents, d)
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating document rows: %w", err)
	}
	return nil
}

func (r *PostgresLectureRepository) Update(ctx context.Context, l *lecture.Lecture) error {
	query := `UPDATE lectures
               SET course = $1, location = $2, description = $3, start_time = $4, end_time = $5,
                   status = $6, updated_at = NOW()
               WHERE id = $7`
	return r.exec(ctx, query, l.Course, l.Location, l.Description, l.StartTime, l.EndTime, l.Status, l.ID)
}

func (r *PostgresLectureRepository) UpdateStatus(ctx context.Context, id int64, status lecture.Status) error {
	return r.exec(ctx, `UPDATE lectures SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
}

func (r *PostgresLectureRepository) UpdateTimes(ctx context.Context, id int64, start, end time.Time, status lecture.Status) error {
	return r.exec(ctx,
		`UPDATE lectures SET start_time = $1, end_time = $2, status = $3, updated_at = NOW() WHERE id = $4`,
		start, end, status, id)
}

// SetLecturerResponse only fires while the entry is still pending, so a
// lecturer's first answer sticks.
func (r *PostgresLectureRepository) SetLecturerResponse(ctx context.Context, lectureID int64, phone string, response lecture.Response) (bool, error) {
	query := `UPDATE lecture_lecturers
               SET response = $1, responded_at = NOW()
               WHERE lecture_id = $2 AND whatsapp = $3 AND response = 'pending'`
	return r.cas(ctx, query, response, lectureID, phone)
}

// ConfirmIfUnlocked takes the decision lock: the WHERE clause guarantees
// exactly one caller flips it.
func (r *PostgresLectureRepository) ConfirmIfUnlocked(ctx context.Context, id int64, confirmedBy string) (bool, error) {
	query := `UPDATE lectures
               SET status = 'Confirmed', locked = TRUE, confirmed_by = $1, updated_at = NOW()
               WHERE id = $2 AND locked = FALSE`
	return r.cas(ctx, query, confirmedBy, id)
}

// CancelIfNotCancelled is the first-wins gate for the unanimous-decline
// cancellation: concurrent final "no" deliveries both pass the unanimity
// check, but only one performs the transition and fans out.
func (r *PostgresLectureRepository) CancelIfNotCancelled(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE lectures
               SET status = 'Cancelled', updated_at = NOW()
               WHERE id = $1 AND status <> 'Cancelled'`
	return r.cas(ctx, query, id)
}

// MarkAnnouncedIfUnannounced is the first-click-wins gate for the ongoing
// announcement. It also moves the lecture to Ongoing in the same write.
func (r *PostgresLectureRepository) MarkAnnouncedIfUnannounced(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE lectures
               SET announcement_sent = TRUE, announcement_sent_at = NOW(), status = 'Ongoing', updated_at = NOW()
               WHERE id = $1 AND announcement_sent = FALSE`
	return r.cas(ctx, query, id)
}

func (r *PostgresLectureRepository) AddNote(ctx context.Context, n *lecture.Note) error {
	query := `INSERT INTO lecture_notes (lecture_id, note, added_by)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, n.LectureID, n.Text, n.AddedBy).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("error adding lecture note: %w", err)
	}
	return nil
}

func (r *PostgresLectureRepository) AddDocument(ctx context.Context, d *lecture.Document) error {
	query := `INSERT INTO lecture_documents (lecture_id, media_id, file_name, mime_type)
               VALUES ($1, $2, $3, $4)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, d.LectureID, d.MediaID, d.FileName, d.MimeType).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("error adding lecture document: %w", err)
	}
	return nil
}

func (r *PostgresLectureRepository) UpdateLecturerName(ctx context.Context, lectureID, entryID int64, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE lecture_lecturers SET name = $1 WHERE id = $2 AND lecture_id = $3`,
		name, entryID, lectureID)
	if err != nil {
		return fmt.Errorf("error renaming lecturer entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for lecturer rename: %w", err)
	}
	if affected == 0 {
		return ErrLecturerEntryNotFound
	}
	return nil
}

func (r *PostgresLectureRepository) MarkLecturerReminded(ctx context.Context, lectureID int64, phone string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE lecture_lecturers SET reminder_sent = TRUE WHERE lecture_id = $1 AND whatsapp = $2`,
		lectureID, phone)
	if err != nil {
		return fmt.Errorf("error marking lecturer reminded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for lecturer reminder: %w", err)
	}
	if affected == 0 {
		return ErrLecturerEntryNotFound
	}
	return nil
}

func (r *PostgresLectureRepository) SetReminderRecord(ctx context.Context, id int64, via string) error {
	return r.exec(ctx,
		`UPDATE lectures SET reminder_sent = TRUE, reminder_sent_at = NOW(), reminder_sent_via = $1, updated_at = NOW() WHERE id = $2`,
		via, id)
}

func (r *PostgresLectureRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating lecture: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for lecture update: %w", err)
	}
	if affected == 0 {
		return ErrLectureNotFound
	}
	return nil
}

func (r *PostgresLectureRepository) cas(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("error on conditional lecture update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected for conditional lecture update: %w", err)
	}
	return affected == 1, nil
}

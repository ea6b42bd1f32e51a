// internal/infra/database/postgres_roster_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"lecture_coordinator_bot/internal/domain/roster"
)

// Custom errors specific to the roster repository
var ErrUserNotFound = fmt.Errorf("user not found")
var ErrClassNotFound = fmt.Errorf("class not found")
var ErrDuplicateWhatsAppNumber = fmt.Errorf("user with this WhatsApp number already exists")

type PostgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) *PostgresRosterRepository {
	return &PostgresRosterRepository{db: db}
}

const userColumns = `id, full_name, reg_number, whatsapp_number, role, class_id, onboarding_step, last_message_at, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*roster.User, error) {
	u := roster.User{}
	err := scanner.Scan(
		&u.ID, &u.FullName, &u.RegNumber, &u.WhatsAppNumber, &u.Role,
		&u.ClassID, &u.OnboardingStep, &u.LastMessageAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error scanning user: %w", err)
	}
	return &u, nil
}

func (r *PostgresRosterRepository) GetUserByWhatsApp(ctx context.Context, phone string) (*roster.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE whatsapp_number = $1`, phone))
}

func (r *PostgresRosterRepository) CreateUser(ctx context.Context, u *roster.User) error {
	query := `INSERT INTO users (full_name, reg_number, whatsapp_number, role, class_id, onboarding_step)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		u.FullName, u.RegNumber, u.WhatsAppNumber, u.Role, u.ClassID, u.OnboardingStep,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWhatsAppNumber
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresRosterRepository) UpdateUser(ctx context.Context, u *roster.User) error {
	query := `UPDATE users
               SET full_name = $1, reg_number = $2, role = $3, class_id = $4, onboarding_step = $5, updated_at = NOW()
               WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query,
		u.FullName, u.RegNumber, u.Role, u.ClassID, u.OnboardingStep, u.ID)
	if err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for user update: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRosterRepository) ListClassMembers(ctx context.Context, classID int64) ([]*roster.User, error) {
	return r.listUsers(ctx,
		`SELECT `+userColumns+` FROM users
          WHERE class_id = $1 AND onboarding_step = 'COMPLETE'
          ORDER BY id ASC`, classID)
}

func (r *PostgresRosterRepository) ListUsersWithClass(ctx context.Context) ([]*roster.User, error) {
	return r.listUsers(ctx,
		`SELECT `+userColumns+` FROM users
          WHERE class_id IS NOT NULL AND onboarding_step = 'COMPLETE'
          ORDER BY id ASC`)
}

func (r *PostgresRosterRepository) listUsers(ctx context.Context, query string, args ...any) ([]*roster.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	var users []*roster.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (r *PostgresRosterRepository) GetClassByID(ctx context.Context, id int64) (*roster.Class, error) {
	query := `SELECT id, title, description, institution, nickname, year, level, class_rep_id, notify_lecturers, created_at, updated_at
               FROM classes WHERE id = $1`
	c := roster.Class{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Title, &c.Description, &c.Institution, &c.Nickname, &c.Year, &c.Level,
		&c.ClassRepID, &c.NotifyLecturers, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("error getting class by id: %w", err)
	}
	return &c, nil
}

// TouchSession deliberately ignores a zero row count: messages from numbers
// we do not know yet must not fail the webhook.
func (r *PostgresRosterRepository) TouchSession(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_message_at = NOW() WHERE whatsapp_number = $1`, phone)
	if err != nil {
		return fmt.Errorf("error touching user session: %w", err)
	}
	return nil
}

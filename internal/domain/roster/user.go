// internal/domain/roster/user.go
package roster

import (
	"database/sql"
	"strings"
	"time"
)

// Role determines what a class member may do over WhatsApp.
type Role string

const (
	RoleStudent  Role = "student"
	RoleClassRep Role = "classrep"
	RoleAdmin    Role = "admin"
)

// OnboardingStep tracks a joining user's progress through enrollment.
type OnboardingStep string

const (
	StepFullName  OnboardingStep = "FULL_NAME"
	StepRegNumber OnboardingStep = "REG_NUMBER"
	StepComplete  OnboardingStep = "COMPLETE"
)

// SessionWindow is how long after a user's last inbound message the
// transport accepts free-form (non-template) outbound messages.
const SessionWindow = 24 * time.Hour

// User represents a class member (student, class rep or admin).
type User struct {
	ID             int64
	FullName       string
	RegNumber      sql.NullString
	WhatsAppNumber string // local msisdn, unique
	Role           Role
	ClassID        sql.NullInt64
	OnboardingStep OnboardingStep
	LastMessageAt  sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsClassRep tolerates the role spellings found in legacy data.
func (u *User) IsClassRep() bool {
	switch strings.ToLower(string(u.Role)) {
	case "classrep", "class_rep", "rep":
		return true
	}
	return false
}

// SessionActive reports whether the user messaged us recently enough for a
// free-form outbound message to be deliverable.
func (u *User) SessionActive(now time.Time) bool {
	return u.LastMessageAt.Valid && now.Sub(u.LastMessageAt.Time) < SessionWindow
}

// FirstName extracts the first name from the user's full name.
func (u *User) FirstName() string {
	return FirstName(u.FullName)
}

// FirstName extracts the leading word of a full name.
func FirstName(fullName string) string {
	fields := strings.Fields(strings.TrimSpace(fullName))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Class represents a class whose students receive lecture updates.
type Class struct {
	ID          int64
	Title       string
	Description sql.NullString
	Institution sql.NullString
	Nickname    sql.NullString
	Year        sql.NullString
	Level       sql.NullString
	ClassRepID  sql.NullInt64

	// NotifyLecturers controls whether this class's lecturers receive
	// next-day notification prompts at all.
	NotifyLecturers bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

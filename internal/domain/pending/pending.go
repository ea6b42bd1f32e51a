// internal/domain/pending/pending.go
package pending

import (
	"context"
	"time"
)

// ActionKind is the free-form input we are waiting for from a lecturer.
type ActionKind string

const (
	ActionAddNote     ActionKind = "add_note"
	ActionAddDocument ActionKind = "add_document"
	// ActionAwaitingChoice means the lecturer was offered note/document
	// buttons and hasn't picked yet; the first inbound content narrows it.
	ActionAwaitingChoice ActionKind = "awaiting_choice"
	// ActionAwaitingCancelChoice is the cancellation-note variant: only
	// text is accepted.
	ActionAwaitingCancelChoice ActionKind = "awaiting_cancel_choice"
)

// Status is the lifecycle of a pending action.
type Status string

const (
	StatusPending Status = "pending"
	StatusClosed  Status = "closed"
)

// Action tracks what free-form input is expected from which lecturer for
// which lecture, and why. Lecturers interact through stateless button taps
// and text/document sends; this record reconstructs conversation state.
//
// At most one Action per lecturer may be Active at a time: Active is the
// lecturer's focus, used to disambiguate replies lacking a reply-context.
type Action struct {
	ID               int64
	LectureID        int64
	LecturerWhatsApp string
	Kind             ActionKind
	Status           Status
	Active           bool
	PromptID         string // originating outbound prompt message id
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Tracker is the Pending Action Tracker.
type Tracker interface {
	// Create inserts (or upserts by prompt id) a non-focused entry.
	Create(ctx context.Context, a *Action) error

	// CreateFocused atomically deactivates the lecturer's other pending
	// entries, then upserts this one as active+pending.
	CreateFocused(ctx context.Context, a *Action) error

	// Resolve finds the pending action an inbound message belongs to:
	// (1) exact prompt-id match on the reply context, (2) the lecturer's
	// active-focus entry, (3) the lecturer's most recent pending entry.
	// Returns the repository's not-found sentinel when none match.
	Resolve(ctx context.Context, actor, replyTo string) (*Action, error)

	GetByPromptID(ctx context.Context, promptID string) (*Action, error)
	HasPending(ctx context.Context, actor string) (bool, error)

	// Narrow converts an awaiting_* entry into a concrete action once the
	// inbound content type is known.
	Narrow(ctx context.Context, id int64, kind ActionKind) error

	// Close finishes the action (lecturer declined further contribution).
	Close(ctx context.Context, id int64) error

	// Deactivate clears the focus flag without closing; document
	// contributions consume focus on success while note actions stay open.
	Deactivate(ctx context.Context, id int64) error
}

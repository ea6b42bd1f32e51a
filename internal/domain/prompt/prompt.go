// internal/domain/prompt/prompt.go
package prompt

import (
	"context"
	"time"
)

// Kind is the semantic type of an outbound prompt.
type Kind string

const (
	// KindNotification is the initial Yes/No/Reschedule decision prompt.
	KindNotification Kind = "notification"
	// KindFollowUp solicits an optional note/document after a confirm.
	KindFollowUp Kind = "followup"
	// KindContribFollowUp asks "anything else?" after a contribution.
	KindContribFollowUp Kind = "contrib_followup"
	// KindCancelFollowUp solicits a cancellation note.
	KindCancelFollowUp Kind = "cancel_followup"
	// KindRescheduleForm anchors the structured reschedule form; the form
	// reply references this prompt to resolve its lecture.
	KindRescheduleForm Kind = "reschedule_form"
)

// Prompt is a Correlation Store entry: it maps an outbound prompt's
// transport message id back to the lecture and recipient it belongs to, so
// inbound replies (which only carry the prompt id) can be resolved to
// domain context. Retained indefinitely as an append-only audit trail; the
// only mutation ever applied is the decision-handled compare-and-set.
type Prompt struct {
	ID              int64
	MessageID       string // transport message id, unique
	LectureID       int64
	Recipient       string // lecturer msisdn
	Kind            Kind
	DecisionHandled bool
	CreatedAt       time.Time
}

// Repository is the Correlation Store.
type Repository interface {
	Record(ctx context.Context, p *Prompt) error
	GetByMessageID(ctx context.Context, messageID string) (*Prompt, error)

	// MarkHandledIfUnhandled atomically flips the decision-handled flag and
	// reports whether this caller performed the flip. Decision prompts are
	// one-shot: only the caller that wins proceeds with state changes.
	MarkHandledIfUnhandled(ctx context.Context, messageID string) (bool, error)
}

// internal/domain/event/event.go
package event

import (
	"database/sql"
	"time"
)

// Kind classifies an inbound webhook event.
type Kind string

const (
	KindText              Kind = "text"
	KindButton            Kind = "button"
	KindInteractiveButton Kind = "interactive_button"
	KindFormReply         Kind = "form_reply"
	KindDocument          Kind = "document"
)

// DocumentMeta describes an inbound document attachment.
type DocumentMeta struct {
	MediaID  string
	FileName string
	MimeType string
	Caption  string
}

// Inbound is one webhook-delivered event, already lifted out of the
// transport's envelope. The transport guarantees a unique ID per event but
// makes no ordering or exactly-once promises; duplicates are expected.
type Inbound struct {
	ID   string // unique transport event id (WAMID)
	From string // sender wa id, e.g. 234803...
	Kind Kind

	Text        string
	ButtonTitle string
	ButtonID    string

	// ReplyTo references the outbound prompt this event answers
	// (the transport's context.id), empty when the message is unanchored.
	ReplyTo string

	// FormJSON carries the raw structured form-reply payload.
	FormJSON string

	Document *DocumentMeta
}

// ButtonReply returns the button text for button-like events, preferring the
// human-visible title over the machine id.
func (e *Inbound) ButtonReply() string {
	if e.ButtonTitle != "" {
		return e.ButtonTitle
	}
	return e.ButtonID
}

// Processed is an Idempotency Ledger entry: one row per accepted inbound
// event id. Corresponds to the 'processed_inbound_events' table.
// Append-only, never updated or deleted.
type Processed struct {
	ID        int64
	EventID   string
	LectureID sql.NullInt64
	Sender    string
	Kind      string
	CreatedAt time.Time
}

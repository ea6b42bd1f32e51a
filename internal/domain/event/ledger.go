// internal/domain/event/ledger.go
package event

import "context"

// Ledger records every processed inbound event id exactly once.
//
// Record must be a single atomic insert with a uniqueness constraint on the
// event id. A duplicate returns the implementation's duplicate sentinel —
// that failure is the idempotency signal and callers absorb it silently.
type Ledger interface {
	Record(ctx context.Context, p *Processed) error
}

package reminder

import (
	"context"
	"time"
)

// Store is the persisted record of reminders. All mutators that run after
// a reminder is scheduled are conditional on the trigger token the caller
// observed; a miss returns ErrStaleVersion. Implementations must make the
// check-token-then-write step a single atomic update so the service stays
// correct across multiple stateless instances.
type Store interface {
	// Create inserts a new reminder and fills in ID, TriggerToken and
	// CreatedAt.
	Create(ctx context.Context, r *Reminder) error

	// Get returns the reminder or ErrNotFound.
	Get(ctx context.Context, id int64) (*Reminder, error)

	// ListByOwner returns all non-cancelled reminders of an owner, soonest
	// first.
	ListByOwner(ctx context.Context, ownerID int64) ([]*Reminder, error)

	// ClaimFired moves a scheduled reminder to fired without advancing the
	// token. Exactly one concurrent caller holding the current token wins;
	// the rest get ErrStaleVersion.
	ClaimFired(ctx context.Context, id, token int64) error

	// UpdateSchedule re-arms a fired recurring reminder: new send_at, state
	// back to scheduled, token advanced. Returns the new token.
	UpdateSchedule(ctx context.Context, id, token int64, sendAt time.Time) (int64, error)

	// Mark records a terminal outcome (delivered or failed) on a fired
	// reminder and advances the token.
	Mark(ctx context.Context, id, token int64, state State) error

	// MarkSchedulerFailure flags a scheduled reminder whose external arm
	// call failed, leaving it detectable for a reconciliation sweep. It is
	// unconditional on the token.
	MarkSchedulerFailure(ctx context.Context, id int64) error

	// Cancel moves a reminder to cancelled and invalidates its token so
	// in-flight triggers become no-ops. Cancelling an already-cancelled
	// reminder is a no-op, not an error.
	Cancel(ctx context.Context, id, ownerID int64) error

	// CancelByOwner cancels every reminder of an owner (owner deletion
	// cascade).
	CancelByOwner(ctx context.Context, ownerID int64) error

	// SetSchedulerHandle records the opaque handle of the current external
	// scheduler execution. Best effort, used for operational tracing.
	SetSchedulerHandle(ctx context.Context, id int64, handle string) error
}

// Package scheduler abstracts the external durable "wait, then invoke"
// service that fires reminder triggers. The service never runs its own
// timer loop; all wake-ups come from the scheduler calling back into the
// trigger endpoint, so a process restart loses nothing.
package scheduler

import (
	"context"
	"time"
)

// TriggerPayload is armed with the scheduler and delivered back verbatim
// when the trigger fires. The token makes at-least-once callbacks safe:
// a callback carrying a stale token is a no-op.
type TriggerPayload struct {
	ReminderID   int64 `json:"reminder_id"`
	TriggerToken int64 `json:"trigger_token"`
}

// Gateway arms and disarms triggers on the external scheduler.
type Gateway interface {
	// Arm schedules an invocation at or after fireAt carrying the payload.
	// It returns an opaque handle identifying the scheduled execution.
	Arm(ctx context.Context, payload TriggerPayload, fireAt time.Time) (string, error)

	// Disarm stops any pending executions for the reminder. Best effort:
	// a trigger that slips through is rejected by the token check anyway.
	Disarm(ctx context.Context, reminderID int64) error
}

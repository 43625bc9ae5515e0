package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/petfolio/reminders/internal/dispatch"
	"github.com/petfolio/reminders/internal/scheduler"
	"github.com/petfolio/reminders/pkg/observability"
)

// Dispatcher sends one fired occurrence. Satisfied by dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatch.Message) dispatch.Result
}

// TriggerHandler is the entry point the external scheduler invokes when a
// trigger fires. The scheduler's contract is at-least-once, so the handler
// makes the whole fire -> dispatch -> rearm sequence effectively
// exactly-once:
//
//  1. the incoming token is compared with the stored one; a mismatch is a
//     duplicate or a cancelled reminder and returns success with no side
//     effects,
//  2. the reminder is claimed (scheduled -> fired) with a conditional
//     update, so of N concurrent duplicates only one dispatches,
//  3. the outcome update (rearm or terminal mark) advances the token in
//     the same atomic write; a cancel that raced the dispatch wins the
//     token and the rearm silently no-ops.
type TriggerHandler struct {
	store      Store
	dispatcher Dispatcher
	gateway    scheduler.Gateway
	now        func() time.Time
	log        *observability.Logger
}

func NewTriggerHandler(store Store, dispatcher Dispatcher, gateway scheduler.Gateway, log *observability.Logger) *TriggerHandler {
	return &TriggerHandler{
		store:      store,
		dispatcher: dispatcher,
		gateway:    gateway,
		now:        time.Now,
		log:        log,
	}
}

// HandleTrigger processes one trigger callback. It only returns an error
// for operational failures (storage unavailable, re-arm failed); stale and
// duplicate invocations return nil.
func (h *TriggerHandler) HandleTrigger(ctx context.Context, payload scheduler.TriggerPayload) error {
	r, err := h.store.Get(ctx, payload.ReminderID)
	if err == ErrNotFound {
		triggersTotal.WithLabelValues("stale").Inc()
		h.log.Info("trigger for unknown reminder, skipping", "reminder_id", payload.ReminderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", payload.ReminderID, err)
	}

	if r.State != StateScheduled || r.TriggerToken != payload.TriggerToken {
		triggersTotal.WithLabelValues("stale").Inc()
		h.log.Info("stale trigger, skipping",
			"reminder_id", r.ID,
			"state", string(r.State),
			"stored_token", r.TriggerToken,
			"incoming_token", payload.TriggerToken)
		return nil
	}

	// Claim the occurrence. A concurrent duplicate loses the race here and
	// never reaches the gateway.
	if err := h.store.ClaimFired(ctx, r.ID, payload.TriggerToken); err != nil {
		if err == ErrStaleVersion {
			triggersTotal.WithLabelValues("stale").Inc()
			return nil
		}
		return fmt.Errorf("failed to claim reminder %d: %w", r.ID, err)
	}

	result := h.dispatcher.Dispatch(ctx, dispatch.Message{
		ReminderID:  r.ID,
		Destination: r.Destination,
		Body:        r.Body,
	})

	if r.IsRecurring() {
		// One missed send must not kill the series: re-arm regardless of
		// the delivery outcome.
		return h.rearm(ctx, r, payload.TriggerToken, result)
	}

	state := StateDelivered
	if !result.Delivered {
		state = StateFailed
	}
	if err := h.store.Mark(ctx, r.ID, payload.TriggerToken, state); err != nil {
		if err == ErrStaleVersion {
			// Cancelled mid-flight; the cancel owns the final state.
			triggersTotal.WithLabelValues("stale").Inc()
			return nil
		}
		return fmt.Errorf("failed to record outcome for reminder %d: %w", r.ID, err)
	}
	triggersTotal.WithLabelValues("handled").Inc()
	return nil
}

func (h *TriggerHandler) rearm(ctx context.Context, r *Reminder, token int64, result dispatch.Result) error {
	loc, err := r.Location()
	if err != nil {
		// A bad stored zone should not stall the series.
		h.log.Warn("falling back to UTC for recurrence", "reminder_id", r.ID, "error", err.Error())
		loc = time.UTC
	}
	next := NextAfter(r.SendAt, h.now(), *r.Repeat, loc)

	newToken, err := h.store.UpdateSchedule(ctx, r.ID, token, next)
	if err == ErrStaleVersion {
		// Cancelled while the dispatch was in flight: no re-arm.
		triggersTotal.WithLabelValues("stale").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reschedule reminder %d: %w", r.ID, err)
	}

	handle, err := h.gateway.Arm(ctx, scheduler.TriggerPayload{
		ReminderID:   r.ID,
		TriggerToken: newToken,
	}, next)
	if err != nil {
		// Leave the row detectable rather than silently losing the series.
		if markErr := h.store.MarkSchedulerFailure(ctx, r.ID); markErr != nil {
			h.log.Error("failed to mark scheduler failure", "reminder_id", r.ID, "error", markErr.Error())
		}
		triggersTotal.WithLabelValues("rearm_failed").Inc()
		return fmt.Errorf("%w: reminder %d: %v", ErrSchedulerArm, r.ID, err)
	}
	if err := h.store.SetSchedulerHandle(ctx, r.ID, handle); err != nil {
		h.log.Warn("failed to record scheduler handle", "reminder_id", r.ID, "error", err.Error())
	}

	actionsTotal.WithLabelValues("rearm").Inc()
	triggersTotal.WithLabelValues("handled").Inc()
	h.log.Info("recurring reminder re-armed",
		"reminder_id", r.ID,
		"next_send_at", next,
		"delivered", result.Delivered)
	return nil
}

package reminder

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/petfolio/reminders/internal/scheduler"
	"github.com/petfolio/reminders/pkg/observability"
)

// CreateRequest is the management API input for scheduling a reminder.
type CreateRequest struct {
	OwnerID      int64       `json:"owner_id"`
	Body         string      `json:"body"`
	Destination  string      `json:"destination"`
	SendAt       time.Time   `json:"send_at"`
	UserTimezone string      `json:"user_timezone"`
	Repeat       *RepeatRule `json:"repeat,omitempty"`
}

// Service implements the reminder management operations the rest of the
// application consumes: create, list, cancel. It owns the arming protocol
// against the durable scheduler.
type Service struct {
	store   Store
	gateway scheduler.Gateway
	now     func() time.Time
	log     *observability.Logger
}

func NewService(store Store, gateway scheduler.Gateway, log *observability.Logger) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		now:     time.Now,
		log:     log,
	}
}

// Create validates the request, persists the reminder and arms the durable
// scheduler. If arming fails the reminder is marked failed, never left
// looking scheduled, and ErrSchedulerArm is returned.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Reminder, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	r := &Reminder{
		OwnerID:      req.OwnerID,
		Body:         req.Body,
		Destination:  req.Destination,
		SendAt:       req.SendAt.UTC(),
		UserTimezone: req.UserTimezone,
		Repeat:       req.Repeat,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	handle, err := s.gateway.Arm(ctx, scheduler.TriggerPayload{
		ReminderID:   r.ID,
		TriggerToken: r.TriggerToken,
	}, r.SendAt)
	if err != nil {
		if markErr := s.store.MarkSchedulerFailure(ctx, r.ID); markErr != nil {
			s.log.Error("failed to mark scheduler failure", "reminder_id", r.ID, "error", markErr.Error())
		}
		return nil, fmt.Errorf("%w: %v", ErrSchedulerArm, err)
	}
	if err := s.store.SetSchedulerHandle(ctx, r.ID, handle); err != nil {
		s.log.Warn("failed to record scheduler handle", "reminder_id", r.ID, "error", err.Error())
	}

	actionsTotal.WithLabelValues("schedule").Inc()
	s.log.Info("reminder scheduled",
		"reminder_id", r.ID,
		"owner_id", r.OwnerID,
		"send_at", r.SendAt,
		"recurring", r.IsRecurring())
	return r, nil
}

// List returns the owner's non-cancelled reminders.
func (s *Service) List(ctx context.Context, ownerID int64) ([]*Reminder, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Get returns a single reminder.
func (s *Service) Get(ctx context.Context, id int64) (*Reminder, error) {
	return s.store.Get(ctx, id)
}

// Active reports whether the reminder still participates in scheduling.
// The external scheduler asks this before acting on a fired trigger.
func (s *Service) Active(ctx context.Context, id int64) (bool, error) {
	r, err := s.store.Get(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.State == StateScheduled || r.State == StateFired, nil
}

// Cancel cancels the reminder and best-effort stops its pending scheduler
// executions. The token bump in the store makes any in-flight trigger a
// no-op even if the stop does not land.
func (s *Service) Cancel(ctx context.Context, id, ownerID int64) error {
	if err := s.store.Cancel(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.gateway.Disarm(ctx, id); err != nil {
		s.log.Warn("failed to disarm scheduler", "reminder_id", id, "error", err.Error())
	}
	actionsTotal.WithLabelValues("cancel").Inc()
	return nil
}

// CancelOwner cancels all reminders of an owner (account deletion cascade).
func (s *Service) CancelOwner(ctx context.Context, ownerID int64) error {
	reminders, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := s.store.CancelByOwner(ctx, ownerID); err != nil {
		return err
	}
	for _, r := range reminders {
		if err := s.gateway.Disarm(ctx, r.ID); err != nil {
			s.log.Warn("failed to disarm scheduler", "reminder_id", r.ID, "error", err.Error())
		}
	}
	actionsTotal.WithLabelValues("cancel_owner").Inc()
	return nil
}

func (s *Service) validate(req CreateRequest) error {
	if req.OwnerID <= 0 {
		return fmt.Errorf("%w: owner_id is required", ErrValidation)
	}
	if req.Body == "" {
		return fmt.Errorf("%w: body must not be empty", ErrValidation)
	}
	if len(req.Body) > MaxBodyBytes || !utf8.ValidString(req.Body) {
		return fmt.Errorf("%w: body exceeds %d bytes or is not valid UTF-8", ErrValidation, MaxBodyBytes)
	}
	if req.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	if !req.SendAt.After(s.now()) {
		return fmt.Errorf("%w: send_at must be in the future", ErrValidation)
	}
	if req.UserTimezone != "" {
		if _, err := time.LoadLocation(req.UserTimezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrValidation, req.UserTimezone)
		}
	}
	if req.Repeat != nil {
		if !validRepeatKind(req.Repeat.Kind) {
			return fmt.Errorf("%w: unknown repeat kind %q", ErrValidation, req.Repeat.Kind)
		}
		if req.Repeat.Interval < 1 {
			return fmt.Errorf("%w: repeat interval must be >= 1", ErrValidation)
		}
	}
	return nil
}

package reminder

import (
	"fmt"
	"time"
)

// RepeatKind is the unit of a recurrence rule.
type RepeatKind string

const (
	RepeatDaily   RepeatKind = "daily"
	RepeatWeekly  RepeatKind = "weekly"
	RepeatMonthly RepeatKind = "monthly"
	RepeatYearly  RepeatKind = "yearly"
)

// RepeatRule describes how a recurring reminder advances. Interval is the
// number of kind units between occurrences and must be >= 1.
type RepeatRule struct {
	Kind     RepeatKind `json:"kind"`
	Interval int        `json:"interval"`
}

// State is the lifecycle state of a reminder.
type State string

const (
	StateScheduled State = "scheduled"
	StateFired     State = "fired"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// MaxBodyBytes is the messaging gateway limit on a template body parameter.
const MaxBodyBytes = 1024

// Reminder is a scheduled notification owned by a user.
type Reminder struct {
	ID           int64       `json:"id"`
	OwnerID      int64       `json:"owner_id"`
	Body         string      `json:"body"`
	Destination  string      `json:"destination"`
	SendAt       time.Time   `json:"send_at"`
	UserTimezone string      `json:"user_timezone"`
	Repeat       *RepeatRule `json:"repeat,omitempty"`
	TriggerToken int64       `json:"trigger_token"`
	State        State       `json:"state"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsRecurring reports whether the reminder has a repeat rule.
func (r *Reminder) IsRecurring() bool {
	return r.Repeat != nil
}

// Location resolves the user's IANA timezone. It is used for recurrence
// computation only; send_at is always UTC.
func (r *Reminder) Location() (*time.Location, error) {
	if r.UserTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.UserTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", r.UserTimezone, err)
	}
	return loc, nil
}

func validRepeatKind(k RepeatKind) bool {
	switch k {
	case RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

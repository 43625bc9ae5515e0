package reminder

import "errors"

var (
	// ErrNotFound is returned when a reminder does not exist.
	ErrNotFound = errors.New("reminder not found")

	// ErrStaleVersion is returned by conditional updates when the stored
	// trigger token has advanced past the token the caller observed.
	// Callers treat it as "someone else already handled this".
	ErrStaleVersion = errors.New("stale trigger token")

	// ErrValidation wraps all request validation failures. It is handled
	// at the management boundary and never reaches the scheduler.
	ErrValidation = errors.New("validation failed")

	// ErrSchedulerArm is returned when the durable scheduler could not be
	// armed. The reminder is left in a failed, detectable state rather
	// than silently dropped.
	ErrSchedulerArm = errors.New("failed to arm scheduler")
)

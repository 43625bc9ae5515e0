package dispatch

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
)

// Attempt is one append-only record of a delivery attempt.
type Attempt struct {
	ID                string
	ReminderID        int64
	AttemptNumber     int
	Outcome           string // delivered | transient | terminal
	StatusCode        *int
	ProviderMessageID string
	Error             string
	CreatedAt         time.Time
}

// Recorder persists dispatch attempts. Records are never mutated; they are
// the audit trail a reconciliation sweep or an operator reads.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record inserts the attempt. Failures are logged, not returned: losing an
// audit row must not change the delivery outcome.
func (r *Recorder) Record(ctx context.Context, a Attempt) {
	if r == nil || r.db == nil {
		return
	}
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_attempts (id, reminder_id, attempt_number, outcome,
			status_code, provider_message_id, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ReminderID, a.AttemptNumber, a.Outcome,
		a.StatusCode, nullable(a.ProviderMessageID), nullable(a.Error), a.CreatedAt,
	)
	if err != nil {
		log.Printf("Failed to record dispatch attempt for reminder %d: %v", a.ReminderID, err)
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

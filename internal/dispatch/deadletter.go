package dispatch

import (
	"context"
	"log"
	"time"
)

// DeadLetterQueue is where terminal delivery failures end up for later
// inspection or manual replay.
const DeadLetterQueue = "reminder-deadletter"

// DeadLetter is the message published for a terminally failed occurrence.
type DeadLetter struct {
	ReminderID  int64     `json:"reminder_id"`
	Destination string    `json:"destination"`
	Body        string    `json:"body"`
	Reason      string    `json:"reason"`
	Attempts    int       `json:"attempts"`
	FailedAt    time.Time `json:"failed_at"`
}

// DeadLetterPublisher publishes dead letters to the broker.
type DeadLetterPublisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

func publishDeadLetter(ctx context.Context, pub DeadLetterPublisher, dl DeadLetter) {
	if pub == nil {
		return
	}
	dl.FailedAt = time.Now().UTC()
	if err := pub.PublishJSON(ctx, DeadLetterQueue, dl); err != nil {
		log.Printf("Failed to publish dead letter for reminder %d: %v", dl.ReminderID, err)
		return
	}
	deadLettersTotal.Inc()
}

// Package dispatch turns a fired reminder trigger into an outbound message
// against the messaging gateway and classifies the outcome.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/petfolio/reminders/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Message is the outbound payload built from a fired reminder.
type Message struct {
	ReminderID  int64
	Destination string
	Body        string
}

// Result is the final outcome of a dispatch, after the retry budget.
type Result struct {
	Delivered         bool
	Terminal          bool // set on failure: the condition will not resolve by retrying
	ProviderMessageID string
	Attempts          int
	Err               error
}

// Dispatcher sends messages with a small retry budget. Gateway rejections
// (4xx) are terminal immediately: a bad destination or rejected template
// will not fix itself. Server errors, timeouts and transport failures are
// transient and retried with short exponential backoff before going
// terminal. Every attempt is recorded append-only.
type Dispatcher struct {
	gateway     MessageGateway
	recorder    *Recorder
	deadLetters DeadLetterPublisher
	maxAttempts int
	timeout     time.Duration
	sleep       func(context.Context, time.Duration)
	log         *observability.Logger
}

func NewDispatcher(gateway MessageGateway, recorder *Recorder, deadLetters DeadLetterPublisher, maxAttempts int, timeout time.Duration, log *observability.Logger) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		gateway:     gateway,
		recorder:    recorder,
		deadLetters: deadLetters,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		sleep:       sleepCtx,
		log:         log,
	}
}

// Dispatch sends the message and returns the final result. It always
// returns; delivery failure is data, not an error to bubble out of the
// trigger handler.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Result {
	timer := prometheus.NewTimer(dispatchLatency)
	defer timer.ObserveDuration()

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		providerID, err := d.send(ctx, msg)
		if err == nil {
			attemptsTotal.WithLabelValues("delivered").Inc()
			d.recorder.Record(ctx, Attempt{
				ReminderID:        msg.ReminderID,
				AttemptNumber:     attempt,
				Outcome:           "delivered",
				ProviderMessageID: providerID,
			})
			d.log.Info("reminder delivered",
				"reminder_id", msg.ReminderID,
				"provider_message_id", providerID,
				"attempt", attempt)
			return Result{Delivered: true, ProviderMessageID: providerID, Attempts: attempt}
		}

		lastErr = err
		statusCode, terminal := classify(err)
		outcome := "transient"
		if terminal {
			outcome = "terminal"
		}
		attemptsTotal.WithLabelValues(outcome).Inc()
		d.recorder.Record(ctx, Attempt{
			ReminderID:    msg.ReminderID,
			AttemptNumber: attempt,
			Outcome:       outcome,
			StatusCode:    statusCode,
			Error:         err.Error(),
		})
		d.log.Warn("dispatch attempt failed",
			"reminder_id", msg.ReminderID,
			"attempt", attempt,
			"outcome", outcome,
			"error", err.Error())

		if terminal {
			return d.fail(ctx, msg, attempt, err)
		}
		if attempt < d.maxAttempts {
			d.sleep(ctx, backoff(attempt))
		}
	}
	return d.fail(ctx, msg, d.maxAttempts, lastErr)
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.gateway.Send(sendCtx, msg.Destination, msg.Body)
}

func (d *Dispatcher) fail(ctx context.Context, msg Message, attempts int, err error) Result {
	publishDeadLetter(ctx, d.deadLetters, DeadLetter{
		ReminderID:  msg.ReminderID,
		Destination: msg.Destination,
		Body:        msg.Body,
		Reason:      err.Error(),
		Attempts:    attempts,
	})
	return Result{Terminal: true, Attempts: attempts, Err: err}
}

// classify maps a gateway error to (status code, terminal?). Anything that
// is not an explicit 4xx rejection is treated as transient.
func classify(err error) (*int, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		code := ge.StatusCode
		return &code, code >= 400 && code < 500
	}
	return nil, false
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

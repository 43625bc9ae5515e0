package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petfolio/reminders/internal/reminder"
	"github.com/petfolio/reminders/internal/reminder/testutil"
	"github.com/petfolio/reminders/pkg/observability"
)

func newService(t *testing.T) (*reminder.Service, *testutil.MemoryStore, *testutil.FakeGateway) {
	t.Helper()
	store := testutil.NewMemoryStore()
	gateway := &testutil.FakeGateway{}
	svc := reminder.NewService(store, gateway, observability.NewLogger("test"))
	return svc, store, gateway
}

func validCreateRequest() reminder.CreateRequest {
	return reminder.CreateRequest{
		OwnerID:      42,
		Body:         "Vacuna de Nala",
		Destination:  "5215511223344",
		SendAt:       time.Now().Add(24 * time.Hour),
		UserTimezone: "America/Mexico_City",
	}
}

func TestServiceCreateValidation(t *testing.T) {
	svc, _, _ := newService(t)

	tests := []struct {
		name   string
		mutate func(*reminder.CreateRequest)
	}{
		{"missing owner", func(r *reminder.CreateRequest) { r.OwnerID = 0 }},
		{"empty body", func(r *reminder.CreateRequest) { r.Body = "" }},
		{"oversized body", func(r *reminder.CreateRequest) {
			b := make([]byte, reminder.MaxBodyBytes+1)
			for i := range b {
				b[i] = 'a'
			}
			r.Body = string(b)
		}},
		{"missing destination", func(r *reminder.CreateRequest) { r.Destination = "" }},
		{"past send_at", func(r *reminder.CreateRequest) { r.SendAt = time.Now().Add(-time.Minute) }},
		{"bad timezone", func(r *reminder.CreateRequest) { r.UserTimezone = "Mars/Olympus" }},
		{"bad repeat kind", func(r *reminder.CreateRequest) {
			r.Repeat = &reminder.RepeatRule{Kind: "hourly", Interval: 1}
		}},
		{"zero interval", func(r *reminder.CreateRequest) {
			r.Repeat = &reminder.RepeatRule{Kind: reminder.RepeatDaily, Interval: 0}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			if !errors.Is(err, reminder.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestServiceCreateArmsScheduler(t *testing.T) {
	svc, store, gateway := newService(t)

	rem, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if rem.State != reminder.StateScheduled {
		t.Errorf("expected state scheduled, got %s", rem.State)
	}
	if rem.TriggerToken != 1 {
		t.Errorf("expected initial token 1, got %d", rem.TriggerToken)
	}
	if gateway.ArmCount() != 1 {
		t.Fatalf("expected 1 arm call, got %d", gateway.ArmCount())
	}
	arm := gateway.Arms[0]
	if arm.Payload.ReminderID != rem.ID || arm.Payload.TriggerToken != 1 {
		t.Errorf("arm payload = %+v, want reminder %d token 1", arm.Payload, rem.ID)
	}

	stored, err := store.Get(context.Background(), rem.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != reminder.StateScheduled {
		t.Errorf("stored state = %s, want scheduled", stored.State)
	}
}

func TestServiceCreateArmFailureLeavesDetectableState(t *testing.T) {
	svc, store, gateway := newService(t)
	gateway.ArmErr = errors.New("execution limit exceeded")

	_, err := svc.Create(context.Background(), validCreateRequest())
	if !errors.Is(err, reminder.ErrSchedulerArm) {
		t.Fatalf("expected ErrSchedulerArm, got %v", err)
	}

	// The row must not look scheduled: a reconciliation sweep has to be
	// able to find it.
	rows, err := store.ListByOwner(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].State != reminder.StateFailed {
		t.Errorf("state = %s, want failed", rows[0].State)
	}
}

func TestServiceCancel(t *testing.T) {
	svc, store, gateway := newService(t)

	rem, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Cancel(context.Background(), rem.ID, rem.OwnerID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	stored, _ := store.Get(context.Background(), rem.ID)
	if stored.State != reminder.StateCancelled {
		t.Errorf("state = %s, want cancelled", stored.State)
	}
	if stored.TriggerToken == rem.TriggerToken {
		t.Error("cancel must invalidate the trigger token")
	}
	if len(gateway.Disarmed) != 1 || gateway.Disarmed[0] != rem.ID {
		t.Errorf("expected disarm of reminder %d, got %v", rem.ID, gateway.Disarmed)
	}

	// Cancelling again is a no-op, not an error.
	if err := svc.Cancel(context.Background(), rem.ID, rem.OwnerID); err != nil {
		t.Errorf("second cancel should be a no-op, got %v", err)
	}

	// A foreign owner cannot cancel.
	if err := svc.Cancel(context.Background(), rem.ID, 999); !errors.Is(err, reminder.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestServiceCancelOwnerCascades(t *testing.T) {
	svc, store, _ := newService(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), validCreateRequest()); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	if err := svc.CancelOwner(context.Background(), 42); err != nil {
		t.Fatalf("CancelOwner failed: %v", err)
	}
	rows, _ := store.ListByOwner(context.Background(), 42)
	if len(rows) != 0 {
		t.Errorf("expected no active reminders after owner cascade, got %d", len(rows))
	}
}

func TestServiceActive(t *testing.T) {
	svc, _, _ := newService(t)

	rem, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	active, err := svc.Active(context.Background(), rem.ID)
	if err != nil || !active {
		t.Errorf("expected active=true, got %v, %v", active, err)
	}

	if err := svc.Cancel(context.Background(), rem.ID, rem.OwnerID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	active, err = svc.Active(context.Background(), rem.ID)
	if err != nil || active {
		t.Errorf("expected active=false after cancel, got %v, %v", active, err)
	}

	// Unknown reminders are inactive, not an error: the scheduler just
	// skips them.
	active, err = svc.Active(context.Background(), 9999)
	if err != nil || active {
		t.Errorf("expected active=false for unknown id, got %v, %v", active, err)
	}
}

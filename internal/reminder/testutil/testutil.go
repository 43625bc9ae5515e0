// Package testutil provides in-memory fakes for the reminder core: a
// Store with real compare-and-swap semantics, a clock-free scheduler
// gateway and a counting dispatcher.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petfolio/reminders/internal/dispatch"
	"github.com/petfolio/reminders/internal/reminder"
	"github.com/petfolio/reminders/internal/scheduler"
)

// MemoryStore implements reminder.Store with the same token semantics as
// the Postgres store, so concurrency protocols can be exercised without a
// database.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*reminder.Reminder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]*reminder.Reminder)}
}

func (m *MemoryStore) Create(ctx context.Context, r *reminder.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	r.TriggerToken = 1
	r.State = reminder.StateScheduled
	r.CreatedAt = time.Now().UTC()
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id int64) (*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, reminder.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, ownerID int64) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reminder.Reminder
	for _, r := range m.rows {
		if r.OwnerID == ownerID && r.State != reminder.StateCancelled {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) ClaimFired(ctx context.Context, id, token int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.TriggerToken != token || r.State != reminder.StateScheduled {
		return reminder.ErrStaleVersion
	}
	r.State = reminder.StateFired
	return nil
}

func (m *MemoryStore) UpdateSchedule(ctx context.Context, id, token int64, sendAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.TriggerToken != token || r.State != reminder.StateFired {
		return 0, reminder.ErrStaleVersion
	}
	r.SendAt = sendAt.UTC()
	r.State = reminder.StateScheduled
	r.TriggerToken++
	return r.TriggerToken, nil
}

func (m *MemoryStore) Mark(ctx context.Context, id, token int64, state reminder.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.TriggerToken != token || r.State != reminder.StateFired {
		return reminder.ErrStaleVersion
	}
	r.State = state
	r.TriggerToken++
	return nil
}

func (m *MemoryStore) MarkSchedulerFailure(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok && r.State == reminder.StateScheduled {
		r.State = reminder.StateFailed
	}
	return nil
}

func (m *MemoryStore) Cancel(ctx context.Context, id, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.OwnerID != ownerID {
		return reminder.ErrNotFound
	}
	if r.State == reminder.StateCancelled {
		return nil
	}
	r.State = reminder.StateCancelled
	r.TriggerToken++
	return nil
}

func (m *MemoryStore) CancelByOwner(ctx context.Context, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.OwnerID == ownerID && r.State != reminder.StateCancelled {
			r.State = reminder.StateCancelled
			r.TriggerToken++
		}
	}
	return nil
}

func (m *MemoryStore) SetSchedulerHandle(ctx context.Context, id int64, handle string) error {
	return nil
}

// ArmCall records one Arm invocation on the fake gateway.
type ArmCall struct {
	Payload scheduler.TriggerPayload
	FireAt  time.Time
}

// FakeGateway implements scheduler.Gateway in memory.
type FakeGateway struct {
	mu       sync.Mutex
	ArmErr   error
	Arms     []ArmCall
	Disarmed []int64
}

func (g *FakeGateway) Arm(ctx context.Context, payload scheduler.TriggerPayload, fireAt time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ArmErr != nil {
		return "", g.ArmErr
	}
	g.Arms = append(g.Arms, ArmCall{Payload: payload, FireAt: fireAt})
	return fmt.Sprintf("arn:fake:execution:reminder-%d-%d", payload.ReminderID, len(g.Arms)), nil
}

func (g *FakeGateway) Disarm(ctx context.Context, reminderID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Disarmed = append(g.Disarmed, reminderID)
	return nil
}

// ArmCount returns how many Arm calls succeeded.
func (g *FakeGateway) ArmCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Arms)
}

// FakeDispatcher implements reminder.Dispatcher, counting calls and
// optionally running a hook before returning (to simulate races).
type FakeDispatcher struct {
	mu         sync.Mutex
	Result     dispatch.Result
	BeforeDone func(msg dispatch.Message)
	calls      []dispatch.Message
}

func (d *FakeDispatcher) Dispatch(ctx context.Context, msg dispatch.Message) dispatch.Result {
	d.mu.Lock()
	d.calls = append(d.calls, msg)
	d.mu.Unlock()
	if d.BeforeDone != nil {
		d.BeforeDone(msg)
	}
	res := d.Result
	res.Attempts = 1
	if !res.Delivered && res.Err == nil {
		res.Err = fmt.Errorf("fake dispatch failure")
	}
	return res
}

// Calls returns the dispatched messages so far.
func (d *FakeDispatcher) Calls() []dispatch.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatch.Message, len(d.calls))
	copy(out, d.calls)
	return out
}

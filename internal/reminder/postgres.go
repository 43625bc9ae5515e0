package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore implements Store on top of PostgreSQL. Every conditional
// mutation is a single UPDATE with the token (and state) in the WHERE
// clause, so the compare-and-swap is atomic without any in-process locking.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reminderColumns = `id, owner_id, body, destination, send_at, user_timezone,
	repeat_kind, repeat_interval, trigger_token, state, created_at`

func (s *PostgresStore) Create(ctx context.Context, r *Reminder) error {
	r.TriggerToken = 1
	r.State = StateScheduled
	r.CreatedAt = time.Now().UTC()

	var kind *string
	var interval *int
	if r.Repeat != nil {
		k := string(r.Repeat.Kind)
		kind = &k
		interval = &r.Repeat.Interval
	}

	query := `
		INSERT INTO reminders (owner_id, body, destination, send_at, user_timezone,
			repeat_kind, repeat_interval, trigger_token, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		r.OwnerID, r.Body, r.Destination, r.SendAt.UTC(), r.UserTimezone,
		kind, interval, r.TriggerToken, r.State, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id)
	return scanReminder(row)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID int64) ([]*Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminders WHERE owner_id = $1 AND state != 'cancelled'
		 ORDER BY send_at ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *PostgresStore) ClaimFired(ctx context.Context, id, token int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET state = 'fired'
		 WHERE id = $1 AND trigger_token = $2 AND state = 'scheduled'`,
		id, token)
	if err != nil {
		return err
	}
	return casOutcome(res)
}

func (s *PostgresStore) UpdateSchedule(ctx context.Context, id, token int64, sendAt time.Time) (int64, error) {
	var newToken int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE reminders
		 SET send_at = $3, state = 'scheduled', trigger_token = trigger_token + 1
		 WHERE id = $1 AND trigger_token = $2 AND state = 'fired'
		 RETURNING trigger_token`,
		id, token, sendAt.UTC()).Scan(&newToken)
	if err == sql.ErrNoRows {
		return 0, ErrStaleVersion
	}
	if err != nil {
		return 0, err
	}
	return newToken, nil
}

func (s *PostgresStore) Mark(ctx context.Context, id, token int64, state State) error {
	if state != StateDelivered && state != StateFailed {
		return fmt.Errorf("cannot mark reminder %d as %q", id, state)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET state = $3, trigger_token = trigger_token + 1
		 WHERE id = $1 AND trigger_token = $2 AND state = 'fired'`,
		id, token, state)
	if err != nil {
		return err
	}
	return casOutcome(res)
}

func (s *PostgresStore) MarkSchedulerFailure(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET state = 'failed'
		 WHERE id = $1 AND state = 'scheduled'`, id)
	return err
}

func (s *PostgresStore) Cancel(ctx context.Context, id, ownerID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET state = 'cancelled', trigger_token = trigger_token + 1
		 WHERE id = $1 AND owner_id = $2 AND state != 'cancelled'`,
		id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either already cancelled (idempotent no-op) or not theirs.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reminders WHERE id = $1 AND owner_id = $2)`,
			id, ownerID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (s *PostgresStore) CancelByOwner(ctx context.Context, ownerID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET state = 'cancelled', trigger_token = trigger_token + 1
		 WHERE owner_id = $1 AND state != 'cancelled'`, ownerID)
	return err
}

func (s *PostgresStore) SetSchedulerHandle(ctx context.Context, id int64, handle string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET scheduler_handle = $2 WHERE id = $1`, id, handle)
	return err
}

func casOutcome(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleVersion
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*Reminder, error) {
	var r Reminder
	var kind sql.NullString
	var interval sql.NullInt32
	err := row.Scan(&r.ID, &r.OwnerID, &r.Body, &r.Destination, &r.SendAt,
		&r.UserTimezone, &kind, &interval, &r.TriggerToken, &r.State, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if kind.Valid && interval.Valid {
		r.Repeat = &RepeatRule{Kind: RepeatKind(kind.String), Interval: int(interval.Int32)}
	}
	return &r, nil
}
